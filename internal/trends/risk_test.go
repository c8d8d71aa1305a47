package trends

import "testing"

func TestCalculateRiskScoreBase(t *testing.T) {
	got := CalculateRiskScore(RiskInputs{Age: 35})
	if got.Score != 5 {
		t.Errorf("score = %d, want 5 for age alone", got.Score)
	}
	if got.Level != "Low" {
		t.Errorf("level = %s, want Low", got.Level)
	}
	if len(got.Factors) != 1 {
		t.Errorf("factors = %v, want the single age factor", got.Factors)
	}
}

func TestCalculateRiskScoreLevels(t *testing.T) {
	cases := []struct {
		in        RiskInputs
		wantLevel string
	}{
		{RiskInputs{Age: 30}, "Low"},
		{RiskInputs{Age: 66, Smoker: true}, "Moderate"},                  // 20 + 15
		{RiskInputs{Age: 66, Smoker: true, Diabetic: true}, "High"},      // 45
		{RiskInputs{Age: 66, Smoker: true, Diabetic: true, FamilyHistoryCVD: true, BPReadings: bpSeries([2]int{150, 95})}, "Very High"}, // 75
	}
	for _, c := range cases {
		got := CalculateRiskScore(c.in)
		if got.Level != c.wantLevel {
			t.Errorf("level for %+v = %s (score %d), want %s", c.in, got.Level, got.Score, c.wantLevel)
		}
	}
}

// The score must never decrease when a single input worsens.
func TestCalculateRiskScoreMonotonic(t *testing.T) {
	base := RiskInputs{Age: 40, BPReadings: bpSeries([2]int{115, 75}), WeightReadings: []WeightPoint{{WeightKg: 70}}, HeightCm: 175}
	baseScore := CalculateRiskScore(base).Score

	older := base
	older.Age = 70
	if CalculateRiskScore(older).Score < baseScore {
		t.Error("raising the age band decreased the score")
	}

	worseBP := base
	worseBP.BPReadings = bpSeries([2]int{165, 100})
	if CalculateRiskScore(worseBP).Score < baseScore {
		t.Error("worsening the BP category decreased the score")
	}

	smoker := base
	smoker.Smoker = true
	if CalculateRiskScore(smoker).Score < baseScore {
		t.Error("setting smoker decreased the score")
	}
}

func TestCalculateRiskScoreCap(t *testing.T) {
	in := RiskInputs{
		Age:              80,
		BPReadings:       bpSeries([2]int{200, 130}),
		WeightReadings:   []WeightPoint{{WeightKg: 140}},
		HeightCm:         165,
		Smoker:           true,
		Diabetic:         true,
		FamilyHistoryCVD: true,
	}
	got := CalculateRiskScore(in)
	// Worst case across every factor: 20+25+15+15+10+10.
	if got.Score != 95 {
		t.Errorf("score = %d, want 95", got.Score)
	}
	if got.Level != "Very High" {
		t.Errorf("level = %s, want Very High", got.Level)
	}
}

func TestCalculateRiskScoreNormalBMIContributesZero(t *testing.T) {
	withNormal := CalculateRiskScore(RiskInputs{Age: 30, WeightReadings: []WeightPoint{{WeightKg: 68}}, HeightCm: 175})
	without := CalculateRiskScore(RiskInputs{Age: 30})
	if withNormal.Score != without.Score {
		t.Errorf("normal BMI changed the score: %d vs %d", withNormal.Score, without.Score)
	}
}
