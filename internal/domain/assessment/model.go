package assessment

import (
	"math"
	"strings"
)

// Label is the three-way bone-health classification shared by every
// prediction modality.
type Label string

const (
	Normal       Label = "Normal"
	Osteopenia   Label = "Osteopenia"
	Osteoporosis Label = "Osteoporosis"
)

// classLabels maps a model class index to its label. Index order must match
// the training order of the 3-class imaging model.
var classLabels = []Label{Normal, Osteopenia, Osteoporosis}

// FromClass converts a raw model class index to a Label. Unrecognized
// indices resolve to Normal.
func FromClass(idx int) Label {
	if idx < 0 || idx >= len(classLabels) {
		return Normal
	}
	return classLabels[idx]
}

// ParseLabel converts a raw string label (any casing) to a Label.
// Unrecognized values resolve to Normal.
func ParseLabel(raw string) Label {
	s := strings.TrimSpace(raw)
	for _, l := range classLabels {
		if strings.EqualFold(string(l), s) {
			return l
		}
	}
	return Normal
}

// Assessment is the unified result returned by every prediction endpoint.
type Assessment struct {
	Prediction     Label             `json:"prediction"`
	Confidence     float64           `json:"confidence"`
	TScore         float64           `json:"t_score"`
	BMD            float64           `json:"bmd"`
	FractureRisk   string            `json:"fracture_risk"`
	Suggestions    []string          `json:"suggestions"`
	Medications    []string          `json:"medications"`
	EvidenceSource string            `json:"evidence_source,omitempty"`
	ExtractedData  map[string]string `json:"extracted_data,omitempty"`
}

// New builds an Assessment for the given label, filling the clinical
// knowledge fields and rounding every numeric field to its fixed precision
// (confidence 4 dp, T-score 2 dp, BMD 3 dp).
func New(label Label, confidence, tScore, bmd float64, evidence string, extracted map[string]string) Assessment {
	kb := Lookup(label)
	return Assessment{
		Prediction:     label,
		Confidence:     Round(confidence, 4),
		TScore:         Round(tScore, 2),
		BMD:            Round(bmd, 3),
		FractureRisk:   kb.FractureRisk,
		Suggestions:    kb.Suggestions,
		Medications:    kb.Medications,
		EvidenceSource: evidence,
		ExtractedData:  extracted,
	}
}

// BMDFromT derives bone mineral density from a T-score via the fixed affine
// relation bmd = 0.95 + 0.12*t, clamped to the plausible clinical range.
func BMDFromT(t float64) float64 {
	bmd := 0.95 + 0.12*t
	return Round(Clamp(bmd, 0.35, 1.30), 3)
}

// TFromBMD is the inverse of BMDFromT.
func TFromBMD(bmd float64) float64 {
	return Round((bmd-0.95)/0.12, 2)
}

// TScoreWithin maps (label, confidence) to a T-score inside the label's
// clinical range. High confidence pulls the value toward the range centre;
// low confidence leaves it near the anchoring boundary (upper bound for
// Normal, lower bound otherwise).
func TScoreWithin(label Label, confidence float64) float64 {
	r := Lookup(label).TScoreRange
	lo, hi := r[0], r[1]
	centre := (lo + hi) / 2
	boundary := lo
	if label == Normal {
		boundary = hi
	}
	t := boundary + (centre-boundary)*confidence
	return Round(Clamp(t, lo-0.5, hi+0.5), 2)
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
