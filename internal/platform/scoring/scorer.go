// Package scoring implements the rule-based clinical risk scorer used by the
// manual predictor when no trained tabular model is available.
//
// Feature order (14 values):
//
//	0  age               years
//	1  gender            0=Female  1=Male
//	2  weight            kg
//	3  height            cm
//	4  bmi               kg/m^2 (derived from weight/height when absent)
//	5  calcium_intake    0=Low  1=Normal  2=High
//	6  vitamin_d         0=Deficient  1=Sufficient
//	7  physical_activity 0=Sedentary  1=Moderate  2=Active
//	8  smoking           0=No  1=Yes
//	9  alcohol           0=No  1=Occasional  2=Regular
//	10 family_history    0=No  1=Yes
//	11 prev_fracture     0=No  1=Yes
//	12 menopause         0=No/N-A  1=Yes
//	13 steroid_use       0=No  1=Yes
package scoring

import (
	"math"

	"github.com/osteocare/osteocare/internal/domain/assessment"
)

// FeatureCount is the length of the rule-based feature vector.
const FeatureCount = 14

// Calibrated risk thresholds: <6 Normal, 6-13 Osteopenia, >13 Osteoporosis.
// Max theoretical cumulative score is about 27.
const (
	lowThresh  = 6.0
	highThresh = 13.0
	maxRisk    = 27.0
)

// Result is the scorer's full output for one feature vector.
type Result struct {
	Label      assessment.Label
	Confidence float64
	TScore     float64
	BMD        float64
	Risk       float64
}

// Age is the single strongest predictor.
func ageScore(age float64) float64 {
	switch {
	case age < 40:
		return 0.0
	case age < 50:
		return 1.0
	case age < 60:
		return 2.5
	case age < 70:
		return 4.5
	default:
		return 6.0
	}
}

// Low BMI (<18.5) is a significant risk; obesity mildly protective.
func bmiScore(bmi float64) float64 {
	switch {
	case bmi < 17.5:
		return 3.0
	case bmi < 18.5:
		return 2.0
	case bmi < 22.0:
		return 1.0
	case bmi < 30.0:
		return 0.0
	default:
		return 0.5
	}
}

func deriveBMI(weight, height float64) float64 {
	if height <= 0 {
		return 22.0
	}
	h := height / 100
	return weight / (h * h)
}

// positiveMod is the non-negative x mod m used by the jitter derivations.
func positiveMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}

// ScoreFeatures computes the cumulative clinical risk score for a feature
// vector and maps it to (label, confidence, T-score, BMD). Vectors shorter
// than 14 are zero-padded; longer ones are truncated.
func ScoreFeatures(features []float64) Result {
	f := make([]float64, FeatureCount)
	copy(f, features)

	age := f[0]
	gender := int(f[1])
	weight := f[2]
	height := f[3]
	bmi := f[4]
	if !(bmi > 5) { // also catches NaN
		bmi = deriveBMI(weight, height)
	}
	caIntake := int(f[5])
	vitD := int(f[6])
	activity := int(f[7])
	smoking := int(f[8])
	alcohol := int(f[9])
	famHist := int(f[10])
	prevFrac := int(f[11])
	menopause := int(f[12])
	steroid := int(f[13])

	risk := 0.0
	risk += ageScore(age)
	risk += bmiScore(bmi)

	// Females post-menopause carry much higher risk.
	if gender == 0 {
		risk += 1.5
	}
	if menopause == 1 {
		risk += 2.5
	}

	// Nutrition deficiencies. High calcium intake adds nothing.
	switch caIntake {
	case 0:
		risk += 1.5
	case 1:
		risk += 0.5
	}
	if vitD == 0 {
		risk += 1.5
	}

	// Lifestyle. Active adds nothing.
	switch activity {
	case 0:
		risk += 1.5
	case 1:
		risk += 0.5
	}
	if smoking == 1 {
		risk += 1.5
	}
	switch alcohol {
	case 2:
		risk += 1.0
	case 1:
		risk += 0.3
	}

	// Clinical history, the strongest individual predictors.
	if famHist == 1 {
		risk += 2.0
	}
	if prevFrac == 1 {
		risk += 3.0
	}
	if steroid == 1 {
		risk += 2.5
	}

	var label assessment.Label
	var confidence float64
	switch {
	case risk < lowThresh:
		label = assessment.Normal
		// 0.72 at the threshold rising to 0.97 at zero risk.
		t := 1.0 - risk/lowThresh
		confidence = 0.72 + 0.25*t
	case risk <= highThresh:
		label = assessment.Osteopenia
		// Confidence peaks mid-band, lower near either threshold.
		mid := (lowThresh + highThresh) / 2
		distFromMid := math.Abs(risk-mid) / ((highThresh - lowThresh) / 2)
		confidence = 0.75 + 0.15*(1.0-distFromMid)
	default:
		label = assessment.Osteoporosis
		t := math.Min((risk-highThresh)/8.0, 1.0)
		confidence = 0.74 + 0.24*t
	}
	confidence = assessment.Clamp(confidence, 0.70, 0.99)

	var sum float64
	for _, v := range f {
		sum += v
	}

	// Map risk 0..27 onto T-score 0.5..-4.5 with a small feature-derived
	// jitter so identical inputs always reproduce the same value.
	tScoreRaw := 0.5 - (risk/maxRisk)*5.0
	jitter := (positiveMod(sum*7.3, 1.0) - 0.5) * 0.3
	tScore := assessment.Round(assessment.Clamp(tScoreRaw+jitter, -5.5, 2.5), 2)

	// BMD: roughly 1.0 for Normal down to 0.5 for severe Osteoporosis.
	bmdRaw := 1.05 - (risk/maxRisk)*0.65
	bmdJitter := (positiveMod(sum*3.7, 1.0) - 0.5) * 0.05
	bmd := assessment.Round(assessment.Clamp(bmdRaw+bmdJitter, 0.4, 1.2), 3)

	return Result{
		Label:      label,
		Confidence: assessment.Round(confidence, 4),
		TScore:     tScore,
		BMD:        bmd,
		Risk:       risk,
	}
}
