// Package engine implements the reply-interpretation and scheduling-decision
// core: classifying inbound free-text replies into intents, extracting health
// readings from them, and deciding per member per tick whether a reminder is
// due. Everything in this package is a pure function over in-memory values.
package engine

import (
	"regexp"
	"strconv"

	"github.com/zhanghealth/zhanghealth/internal/models"
)

// Metric category labels derived from the fixed threshold tables.
const (
	CategoryNormal      = "normal"
	CategoryElevated    = "elevated"
	CategoryHighStage1  = "high_stage1"
	CategoryHighStage2  = "high_stage2"
	CategoryCrisis      = "crisis"
	CategoryLow         = "low"
	CategoryHigh        = "high"
	CategoryPrediabetic = "prediabetic"
	CategoryDiabetic    = "diabetic"
)

// Reading patterns. These are applied with regexp "find" semantics (a match
// anywhere in the text), case-insensitively, in the order listed. Keyword
// prefixes accept both English and Chinese forms.
var (
	bpPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:bp|血压|blood\s*pressure)\s*(\d{2,3})\s*/\s*(\d{2,3})`),
		regexp.MustCompile(`^(\d{2,3})\s*/\s*(\d{2,3})$`), // bare "120/80"
	}
	bsPattern     = regexp.MustCompile(`(?i)(?:bs|血糖|blood\s*sugar|sugar|glucose)\s*(\d+\.?\d*)`)
	weightPattern = regexp.MustCompile(`(?i)(?:w|体重|weight)\s*(\d+\.?\d*)`)
	hrPattern     = regexp.MustCompile(`(?i)(?:hr|心率|heart\s*rate|pulse)\s*(\d{2,3})`)

	cjkPattern = regexp.MustCompile(`[\x{4e00}-\x{9fff}]`)
)

// metricMatcher pairs an extraction function with the reading kind it
// produces. Matchers are evaluated in a fixed order; the first one whose
// pattern matches AND whose numeric validity check passes wins.
type metricMatcher func(text string) (models.HealthReading, bool)

var metricMatchers = []metricMatcher{
	parseBloodPressure,
	parseBloodSugar,
	parseWeight,
	parseHeartRate,
}

// ParseMetric extracts a health reading from free text. It returns false when
// no pattern matches or every match fails its validity range; malformed input
// is never an error.
func ParseMetric(text string) (models.HealthReading, bool) {
	for _, match := range metricMatchers {
		if r, ok := match(text); ok {
			return r, true
		}
	}
	return models.HealthReading{}, false
}

func parseBloodPressure(text string) (models.HealthReading, bool) {
	for _, pattern := range bpPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		systolic, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		diastolic, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if systolic < 60 || systolic > 250 || diastolic < 30 || diastolic > 150 {
			continue
		}
		return models.HealthReading{
			Kind:      models.ReadingBloodPressure,
			Systolic:  systolic,
			Diastolic: diastolic,
			Category:  ClassifyBloodPressure(systolic, diastolic),
		}, true
	}
	return models.HealthReading{}, false
}

func parseBloodSugar(text string) (models.HealthReading, bool) {
	m := bsPattern.FindStringSubmatch(text)
	if m == nil {
		return models.HealthReading{}, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return models.HealthReading{}, false
	}
	// Values below 30 are read as mmol/L and converted to mg/dL for
	// classification; anything else is already mg/dL.
	unit := "mg/dL"
	mgdl := value
	if value < 30 {
		unit = "mmol/L"
		mgdl = value * 18
	}
	if mgdl < 20 || mgdl > 600 {
		return models.HealthReading{}, false
	}
	return models.HealthReading{
		Kind:     models.ReadingBloodSugar,
		Value:    value,
		Unit:     unit,
		Category: ClassifyBloodSugar(mgdl),
	}, true
}

func parseWeight(text string) (models.HealthReading, bool) {
	m := weightPattern.FindStringSubmatch(text)
	if m == nil {
		return models.HealthReading{}, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return models.HealthReading{}, false
	}
	// Unit inference: Chinese text implies kg; otherwise values over 100
	// are read as lbs. Bare values at or below 100 default to kg, which is
	// genuinely ambiguous for some inputs ("weight 95" could be either).
	var unit string
	switch {
	case cjkPattern.MatchString(text):
		unit = "kg"
	case value > 100:
		unit = "lbs"
	default:
		unit = "kg"
	}
	return models.HealthReading{
		Kind:  models.ReadingWeight,
		Value: value,
		Unit:  unit,
	}, true
}

func parseHeartRate(text string) (models.HealthReading, bool) {
	m := hrPattern.FindStringSubmatch(text)
	if m == nil {
		return models.HealthReading{}, false
	}
	bpm, err := strconv.Atoi(m[1])
	if err != nil {
		return models.HealthReading{}, false
	}
	if bpm < 30 || bpm > 220 {
		return models.HealthReading{}, false
	}
	return models.HealthReading{
		Kind:     models.ReadingHeartRate,
		Value:    float64(bpm),
		Category: ClassifyHeartRate(bpm),
	}, true
}

// ClassifyBloodPressure maps a reading to a category label. Branches are
// evaluated in order and the first match wins. The crisis arm below the
// stage2 arm is shadowed by it and unreachable; the ordering is preserved
// deliberately (see DESIGN.md).
func ClassifyBloodPressure(systolic, diastolic int) string {
	switch {
	case systolic < 120 && diastolic < 80:
		return CategoryNormal
	case systolic < 130 && diastolic < 80:
		return CategoryElevated
	case systolic < 140 || diastolic < 90:
		return CategoryHighStage1
	case systolic >= 140 || diastolic >= 90:
		return CategoryHighStage2
	case systolic >= 180 || diastolic >= 120:
		return CategoryCrisis
	}
	return "unknown"
}

// ClassifyBloodSugar maps a fasting glucose value in mg/dL to a category.
func ClassifyBloodSugar(mgdl float64) string {
	switch {
	case mgdl < 70:
		return CategoryLow
	case mgdl < 100:
		return CategoryNormal
	case mgdl < 126:
		return CategoryPrediabetic
	default:
		return CategoryDiabetic
	}
}

// ClassifyHeartRate maps a resting heart rate in bpm to a category.
func ClassifyHeartRate(bpm int) string {
	switch {
	case bpm < 60:
		return CategoryLow
	case bpm <= 100:
		return CategoryNormal
	default:
		return CategoryHigh
	}
}
