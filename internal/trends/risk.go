package trends

import "fmt"

// RiskInputs are the combined metrics feeding the risk score.
type RiskInputs struct {
	Age              int
	BPReadings       []BloodPressurePoint
	WeightReadings   []WeightPoint
	HeightCm         float64
	Smoker           bool
	Diabetic         bool
	FamilyHistoryCVD bool
}

// RiskAssessment is a simplified 0-100 health risk score with the factors
// that contributed to it.
type RiskAssessment struct {
	Score          int      `json:"score"`
	Level          string   `json:"level"`
	Factors        []string `json:"factors"`
	Recommendation string   `json:"recommendation"`
}

var bpRiskPoints = map[string]int{
	"low":       0,
	"moderate":  10,
	"high":      15,
	"very_high": 20,
	"critical":  25,
}

var bmiRiskPoints = map[string]int{
	"low":       5,
	"moderate":  8,
	"high":      12,
	"very_high": 14,
	"critical":  15,
}

// CalculateRiskScore computes a weighted, capped risk score from age bands,
// the latest BP and BMI categories, and boolean risk flags. The score never
// decreases when any single input worsens.
func CalculateRiskScore(in RiskInputs) RiskAssessment {
	score := 0
	var factors []string

	// Age band (5-20 points).
	var agePoints int
	switch {
	case in.Age >= 65:
		agePoints = 20
	case in.Age >= 55:
		agePoints = 15
	case in.Age >= 45:
		agePoints = 10
	default:
		agePoints = 5
	}
	score += agePoints
	factors = append(factors, fmt.Sprintf("Age %d: +%d", in.Age, agePoints))

	// Latest blood pressure (0-25 points).
	if len(in.BPReadings) > 0 {
		latest := in.BPReadings[len(in.BPReadings)-1]
		cat := classifyBP(latest.Systolic, latest.Diastolic)
		pts, ok := bpRiskPoints[cat.Risk]
		if !ok {
			pts = 10
		}
		score += pts
		factors = append(factors, fmt.Sprintf("BP %d/%d (%s): +%d", latest.Systolic, latest.Diastolic, cat.Name, pts))
	}

	// Latest BMI (0-15 points); a Normal BMI contributes nothing.
	if len(in.WeightReadings) > 0 && in.HeightCm > 0 {
		latest := in.WeightReadings[len(in.WeightReadings)-1].WeightKg
		heightM := in.HeightCm / 100
		bmi := latest / (heightM * heightM)
		cat := classifyBMI(bmi)
		pts, ok := bmiRiskPoints[cat.Risk]
		if !ok {
			pts = 5
		}
		if cat.Name == "Normal" {
			pts = 0
		}
		score += pts
		factors = append(factors, fmt.Sprintf("BMI %.1f (%s): +%d", bmi, cat.Name, pts))
	}

	if in.Smoker {
		score += 15
		factors = append(factors, "Smoker: +15")
	}
	if in.Diabetic {
		score += 10
		factors = append(factors, "Diabetic: +10")
	}
	if in.FamilyHistoryCVD {
		score += 10
		factors = append(factors, "Family CVD history: +10")
	}

	if score > 100 {
		score = 100
	}

	var level string
	switch {
	case score <= 20:
		level = "Low"
	case score <= 40:
		level = "Moderate"
	case score <= 60:
		level = "High"
	default:
		level = "Very High"
	}

	return RiskAssessment{
		Score:          score,
		Level:          level,
		Factors:        factors,
		Recommendation: riskRecommendation(level),
	}
}

func riskRecommendation(level string) string {
	recs := map[string]string{
		"Low":       "Continue healthy habits. Annual checkup recommended.",
		"Moderate":  "Focus on diet and exercise. Semi-annual checkups recommended.",
		"High":      "Consult physician for comprehensive evaluation. Quarterly monitoring.",
		"Very High": "Urgent medical consultation recommended. Monthly monitoring.",
	}
	if rec, ok := recs[level]; ok {
		return rec
	}
	return "Consult physician."
}
