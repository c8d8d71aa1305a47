package trends

import (
	"fmt"
	"strings"
	"time"
)

// AdherenceSummary is the slice of an adherence report the weekly summary
// renders. It is produced by the meds package; keeping a narrow local type
// avoids an import cycle between trends and meds.
type AdherenceSummary struct {
	OverallRate float64
}

// WeeklySummary renders a compact health summary suitable for SMS delivery.
// Only sections with data are included; the last 7 readings of each metric
// feed the per-metric analyses.
func WeeklySummary(memberID string, now time.Time, bpReadings []BloodPressurePoint, weightReadings []WeightPoint, adherence *AdherenceSummary) string {
	lines := []string{
		"Weekly Health Summary",
		fmt.Sprintf("%s | %s", memberID, now.Format("Jan 02, 2006")),
		strings.Repeat("─", 30),
	}

	if len(bpReadings) > 0 {
		window := bpReadings
		if len(window) > 7 {
			window = window[len(window)-7:]
		}
		bp := AnalyzeBloodPressure(window, memberID)
		lines = append(lines,
			"",
			"Blood Pressure:",
			fmt.Sprintf("  Latest: %d/%d (%s)", bp.Latest.Systolic, bp.Latest.Diastolic, bp.Latest.Category),
			fmt.Sprintf("  Avg: %.1f/%.1f", bp.Statistics.SystolicAvg, bp.Statistics.DiastolicAvg),
			fmt.Sprintf("  Trend: %s", bp.Trend),
		)
	}

	if len(weightReadings) > 0 {
		window := weightReadings
		if len(window) > 7 {
			window = window[len(window)-7:]
		}
		wt := AnalyzeWeight(window, 175, 0, memberID)
		lines = append(lines,
			"",
			"Weight:",
			fmt.Sprintf("  Latest: %.1fkg (BMI %.1f)", wt.Latest.WeightKg, wt.Latest.BMI),
			fmt.Sprintf("  Trend: %s (%+.1f kg/week)", wt.Trend, wt.WeeklyChangeKg),
		)
	}

	if adherence != nil {
		status := "Needs improvement"
		if adherence.OverallRate >= 80 {
			status = "Great!"
		}
		lines = append(lines,
			"",
			fmt.Sprintf("Medication Adherence: %.1f%%", adherence.OverallRate),
			fmt.Sprintf("  Status: %s", status),
		)
	}

	lines = append(lines, "", "Reply HEALTH for detailed report")
	return strings.Join(lines, "\n")
}
