package meds

import (
	"math"
	"time"

	"github.com/zhanghealth/zhanghealth/internal/models"
)

// MedicationAdherence is the per-medication slice of an adherence report.
type MedicationAdherence struct {
	AdherenceRate float64 `json:"adherence_rate"`
	Taken         int     `json:"taken"`
	Scheduled     int     `json:"scheduled"`
	Status        string  `json:"status"` // "good" at ≥80%, else "needs_improvement"
}

// AdherenceReport summarizes dose adherence over a trailing window.
type AdherenceReport struct {
	MemberID       string                         `json:"member_id"`
	PeriodDays     int                            `json:"period_days"`
	OverallRate    float64                        `json:"overall_adherence_rate"`
	TotalScheduled int                            `json:"total_scheduled"`
	TotalTaken     int                            `json:"total_taken"`
	ByMedication   map[string]MedicationAdherence `json:"by_medication"`
	Assessment     string                         `json:"assessment"`
}

// BuildAdherenceReport folds the member's adherence events over the trailing
// window ending at now into per-medication and overall rates. Events with an
// unparseable response time are skipped. An empty window yields a zero-rate
// report, never an error.
func BuildAdherenceReport(events []models.AdherenceEvent, memberID string, days int, now time.Time) AdherenceReport {
	start := now.AddDate(0, 0, -days)

	totalScheduled := 0
	totalTaken := 0
	type counts struct{ scheduled, taken int }
	byMed := make(map[string]counts)

	for _, ev := range events {
		if ev.MemberID != memberID {
			continue
		}
		ts, err := time.Parse(time.RFC3339, ev.ResponseTime)
		if err != nil {
			continue
		}
		if ts.Before(start) || ts.After(now) {
			continue
		}
		c := byMed[ev.MedicationName]
		c.scheduled++
		totalScheduled++
		if ev.Taken {
			c.taken++
			totalTaken++
		}
		byMed[ev.MedicationName] = c
	}

	overall := 0.0
	if totalScheduled > 0 {
		overall = float64(totalTaken) / float64(totalScheduled) * 100
	}

	rates := make(map[string]MedicationAdherence, len(byMed))
	for name, c := range byMed {
		rate := 0.0
		if c.scheduled > 0 {
			rate = float64(c.taken) / float64(c.scheduled) * 100
		}
		status := "needs_improvement"
		if rate >= 80 {
			status = "good"
		}
		rates[name] = MedicationAdherence{
			AdherenceRate: round1(rate),
			Taken:         c.taken,
			Scheduled:     c.scheduled,
			Status:        status,
		}
	}

	return AdherenceReport{
		MemberID:       memberID,
		PeriodDays:     days,
		OverallRate:    round1(overall),
		TotalScheduled: totalScheduled,
		TotalTaken:     totalTaken,
		ByMedication:   rates,
		Assessment:     assessAdherence(overall),
	}
}

func assessAdherence(rate float64) string {
	switch {
	case rate >= 90:
		return "Excellent adherence. Keep it up!"
	case rate >= 80:
		return "Good adherence. Minor improvement possible."
	case rate >= 60:
		return "Fair adherence. Consider setting additional reminders."
	default:
		return "Low adherence. Please discuss with healthcare provider."
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
