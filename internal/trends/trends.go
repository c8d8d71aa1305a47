// Package trends analyzes stored health readings over time: trend direction,
// summary statistics, anomaly detection, weight-goal progress, and a combined
// risk score. All analyses are pure folds over the input slices — calling
// them twice on the same data yields identical results.
package trends

import (
	"math"
)

// BloodPressurePoint is one dated blood pressure reading.
type BloodPressurePoint struct {
	Systolic  int    `json:"systolic"`
	Diastolic int    `json:"diastolic"`
	Timestamp string `json:"timestamp,omitempty"`
}

// WeightPoint is one dated weight reading in kilograms.
type WeightPoint struct {
	WeightKg  float64 `json:"weight_kg"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// Trend direction labels.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// StatusNoData marks an analysis over an empty reading history.
const StatusNoData = "no_data"

// bpCategory is one row of the blood pressure classification table (AHA
// bands). The table is scanned in order; the first row whose limits both
// hold wins.
type bpCategory struct {
	Name        string
	SystolicMax int
	DiastolicMax int
	Risk        string
}

var bpCategories = []bpCategory{
	{"Normal", 120, 80, "low"},
	{"Elevated", 129, 80, "moderate"},
	{"Stage 1 Hypertension", 139, 89, "high"},
	{"Stage 2 Hypertension", 180, 120, "very_high"},
	{"Hypertensive Crisis", 999, 999, "critical"},
}

// bmiCategory is one row of the WHO BMI classification table.
type bmiCategory struct {
	Name string
	Max  float64
	Risk string
}

var bmiCategories = []bmiCategory{
	{"Underweight", 18.5, "moderate"},
	{"Normal", 24.9, "low"},
	{"Overweight", 29.9, "moderate"},
	{"Obese Class I", 34.9, "high"},
	{"Obese Class II", 39.9, "very_high"},
	{"Obese Class III", 999, "critical"},
}

func classifyBP(systolic, diastolic int) bpCategory {
	for _, cat := range bpCategories {
		if systolic <= cat.SystolicMax && diastolic <= cat.DiastolicMax {
			return cat
		}
	}
	return bpCategories[len(bpCategories)-1]
}

func classifyBMI(bmi float64) bmiCategory {
	for _, cat := range bmiCategories {
		if bmi <= cat.Max {
			return cat
		}
	}
	return bmiCategories[len(bmiCategories)-1]
}

// Anomaly flags one reading whose systolic value deviates from the window
// mean by more than two standard deviations.
type Anomaly struct {
	Index     int    `json:"index"`
	Systolic  int    `json:"systolic"`
	Diastolic int    `json:"diastolic"`
	Timestamp string `json:"timestamp,omitempty"`
	Type      string `json:"type"` // "high" or "low" by sign of deviation
}

// BPLatest describes the most recent blood pressure reading.
type BPLatest struct {
	Systolic  int    `json:"systolic"`
	Diastolic int    `json:"diastolic"`
	Category  string `json:"category"`
	Risk      string `json:"risk"`
}

// BPStatistics summarizes a blood pressure window.
type BPStatistics struct {
	SystolicAvg  float64 `json:"systolic_avg"`
	SystolicMin  int     `json:"systolic_min"`
	SystolicMax  int     `json:"systolic_max"`
	DiastolicAvg float64 `json:"diastolic_avg"`
	DiastolicMin int     `json:"diastolic_min"`
	DiastolicMax int     `json:"diastolic_max"`
}

// BPAnalysis is the result of analyzing a member's blood pressure history.
type BPAnalysis struct {
	Status         string       `json:"status,omitempty"`
	MemberID       string       `json:"member_id,omitempty"`
	TotalReadings  int          `json:"total_readings"`
	Latest         BPLatest     `json:"latest"`
	Statistics     BPStatistics `json:"statistics"`
	Trend          string       `json:"trend"`
	Anomalies      []Anomaly    `json:"anomalies"`
	Recommendation string       `json:"recommendation"`
}

// AnalyzeBloodPressure folds an ordered-by-time sequence of blood pressure
// readings into summary statistics, a trend direction, and anomaly flags.
// An empty history yields an explicit no-data result, never an error.
func AnalyzeBloodPressure(readings []BloodPressurePoint, memberID string) BPAnalysis {
	if len(readings) == 0 {
		return BPAnalysis{Status: StatusNoData, MemberID: memberID}
	}

	systolic := make([]float64, len(readings))
	diastolic := make([]float64, len(readings))
	for i, r := range readings {
		systolic[i] = float64(r.Systolic)
		diastolic[i] = float64(r.Diastolic)
	}

	latest := readings[len(readings)-1]
	category := classifyBP(latest.Systolic, latest.Diastolic)

	// Trend: mean of the last 5 points against an earlier window — the
	// first 5 when there are at least 10 readings, otherwise the first half.
	trend := TrendStable
	if len(systolic) >= 5 {
		recentAvg := mean(systolic[len(systolic)-5:])
		var olderAvg float64
		if len(systolic) >= 10 {
			olderAvg = mean(systolic[:5])
		} else {
			olderAvg = mean(systolic[:len(systolic)/2])
		}
		switch diff := recentAvg - olderAvg; {
		case diff > 5:
			trend = TrendIncreasing
		case diff < -5:
			trend = TrendDecreasing
		}
	}

	// Anomalies: requires at least 5 points and a non-zero sample stddev.
	var anomalies []Anomaly
	if len(systolic) >= 5 {
		meanSys := mean(systolic)
		stdSys := sampleStdDev(systolic)
		for i, r := range readings {
			if stdSys > 0 && math.Abs(float64(r.Systolic)-meanSys) > 2*stdSys {
				kind := "low"
				if float64(r.Systolic) > meanSys {
					kind = "high"
				}
				anomalies = append(anomalies, Anomaly{
					Index:     i,
					Systolic:  r.Systolic,
					Diastolic: r.Diastolic,
					Timestamp: r.Timestamp,
					Type:      kind,
				})
			}
		}
	}

	return BPAnalysis{
		MemberID:      memberID,
		TotalReadings: len(readings),
		Latest: BPLatest{
			Systolic:  latest.Systolic,
			Diastolic: latest.Diastolic,
			Category:  category.Name,
			Risk:      category.Risk,
		},
		Statistics: BPStatistics{
			SystolicAvg:  round1(mean(systolic)),
			SystolicMin:  int(minOf(systolic)),
			SystolicMax:  int(maxOf(systolic)),
			DiastolicAvg: round1(mean(diastolic)),
			DiastolicMin: int(minOf(diastolic)),
			DiastolicMax: int(maxOf(diastolic)),
		},
		Trend:          trend,
		Anomalies:      anomalies,
		Recommendation: bpRecommendation(category, trend),
	}
}

// GoalProgress reports progress toward a weight target.
type GoalProgress struct {
	TargetKg             float64  `json:"target_kg"`
	RemainingKg          float64  `json:"remaining_kg"`
	ProgressPct          float64  `json:"progress_pct"`
	WeeklyRate           float64  `json:"weekly_rate"`
	EstimatedWeeksToGoal *int     `json:"estimated_weeks_to_goal"` // nil when the trend moves away from the goal
}

// WeightLatest describes the most recent weight reading with derived BMI.
type WeightLatest struct {
	WeightKg    float64 `json:"weight_kg"`
	BMI         float64 `json:"bmi"`
	BMICategory string  `json:"bmi_category"`
	Risk        string  `json:"risk"`
}

// WeightStatistics summarizes a weight window.
type WeightStatistics struct {
	AvgKg float64 `json:"avg_kg"`
	MinKg float64 `json:"min_kg"`
	MaxKg float64 `json:"max_kg"`
	StdKg float64 `json:"std_kg"`
}

// WeightAnalysis is the result of analyzing a member's weight history.
type WeightAnalysis struct {
	Status         string           `json:"status,omitempty"`
	MemberID       string           `json:"member_id,omitempty"`
	TotalReadings  int              `json:"total_readings"`
	Latest         WeightLatest     `json:"latest"`
	Statistics     WeightStatistics `json:"statistics"`
	Trend          string           `json:"trend"`
	WeeklyChangeKg float64          `json:"weekly_change_kg"`
	GoalProgress   *GoalProgress    `json:"goal_progress,omitempty"`
}

// AnalyzeWeight folds a weight history into BMI, trend, and optional goal
// progress. heightCm is used for BMI; targetKg of 0 means no goal is set.
func AnalyzeWeight(readings []WeightPoint, heightCm, targetKg float64, memberID string) WeightAnalysis {
	if len(readings) == 0 {
		return WeightAnalysis{Status: StatusNoData, MemberID: memberID}
	}

	weights := make([]float64, len(readings))
	for i, r := range readings {
		weights[i] = r.WeightKg
	}
	latest := weights[len(weights)-1]
	heightM := heightCm / 100
	bmi := latest / (heightM * heightM)
	bmiCat := classifyBMI(bmi)

	// Trend: last 7 points against the first 7 (or the very first reading
	// when fewer than 14 exist), normalized to a weekly rate.
	trend := TrendStable
	var weeklyChange float64
	if len(weights) >= 7 {
		recent := mean(weights[len(weights)-7:])
		older := weights[0]
		if len(weights) >= 14 {
			older = mean(weights[:7])
		}
		weeks := math.Max(1, float64(len(weights))/7)
		weeklyChange = (recent - older) / weeks
		switch {
		case weeklyChange > 0.2:
			trend = TrendIncreasing
		case weeklyChange < -0.2:
			trend = TrendDecreasing
		}
	}

	var goal *GoalProgress
	if targetKg > 0 {
		start := weights[0]
		totalToLose := start - targetKg
		lostSoFar := start - latest
		progressPct := 100.0
		if totalToLose != 0 {
			progressPct = lostSoFar / totalToLose * 100
		}
		goal = &GoalProgress{
			TargetKg:    targetKg,
			RemainingKg: round1(latest - targetKg),
			ProgressPct: round1(math.Min(100, math.Max(0, progressPct))),
			WeeklyRate:  round2(weeklyChange),
		}
		// A weeks-to-goal estimate only makes sense when the weekly rate
		// moves the latest weight toward the target.
		towardGoal := (weeklyChange < 0 && latest > targetKg) || (weeklyChange > 0 && latest < targetKg)
		if weeklyChange != 0 && towardGoal {
			weeks := int(math.Round(math.Abs(latest-targetKg) / math.Abs(weeklyChange)))
			goal.EstimatedWeeksToGoal = &weeks
		}
	}

	return WeightAnalysis{
		MemberID:      memberID,
		TotalReadings: len(readings),
		Latest: WeightLatest{
			WeightKg:    latest,
			BMI:         round1(bmi),
			BMICategory: bmiCat.Name,
			Risk:        bmiCat.Risk,
		},
		Statistics: WeightStatistics{
			AvgKg: round1(mean(weights)),
			MinKg: round1(minOf(weights)),
			MaxKg: round1(maxOf(weights)),
			StdKg: round2(sampleStdDev(weights)),
		},
		Trend:          trend,
		WeeklyChangeKg: round2(weeklyChange),
		GoalProgress:   goal,
	}
}

func bpRecommendation(category bpCategory, trend string) string {
	recs := map[string]string{
		"Normal":               "Maintain healthy lifestyle. Continue monitoring.",
		"Elevated":             "Reduce sodium intake, increase exercise. Monitor weekly.",
		"Stage 1 Hypertension": "Consult physician. Lifestyle changes recommended. Monitor daily.",
		"Stage 2 Hypertension": "See physician promptly. Medication may be needed.",
		"Hypertensive Crisis":  "SEEK IMMEDIATE MEDICAL ATTENTION.",
	}
	rec, ok := recs[category.Name]
	if !ok {
		rec = "Consult physician."
	}
	if trend == TrendIncreasing {
		rec += " NOTE: BP trend is increasing — discuss with doctor."
	}
	return rec
}

// mean returns the arithmetic mean; callers guarantee a non-empty slice.
func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev returns the sample standard deviation (n-1 denominator),
// or 0 for fewer than two values.
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
