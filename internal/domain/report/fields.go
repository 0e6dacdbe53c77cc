package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/osteocare/osteocare/internal/domain/assessment"
)

// fieldValue is one recovered clinical field: the numeric encoding fed to the
// scorer plus the display string shown in the evidence panel.
type fieldValue struct {
	value   float64
	display string
}

var (
	ageColonRe = regexp.MustCompile(`(?i)(?:age|aged)[:\s]+(\d{1,3})`)
	ageSuffixRe = regexp.MustCompile(`(?i)\b(\d{2,3})\s*(?:year|yr)s?[\s\-]?old`)

	femaleRe = regexp.MustCompile(`(?i)\b(?:female|woman|mrs?\.?|she|her)\b`)
	maleRe   = regexp.MustCompile(`(?i)\b(?:male|man|mr\.?|he|his)\b`)

	weightLabeledRe = regexp.MustCompile(`(?i)(?:weight|wt)[:\s]+(\d{2,3}(?:\.\d)?)\s*kg`)
	weightBareRe    = regexp.MustCompile(`(?i)\b(\d{2,3}(?:\.\d)?)\s*kgs?\b`)

	heightLabeledRe = regexp.MustCompile(`(?i)(?:height|ht)[:\s]+(\d{2,3}(?:\.\d)?)\s*cm`)
	heightBareRe    = regexp.MustCompile(`(?i)\b(1\d{2}(?:\.\d)?)\s*cm\b`)
	heightMetresRe  = regexp.MustCompile(`(?i)\b(1\.\d{2})\s*m\b`)

	bmiRe = regexp.MustCompile(`(?i)bmi[:\s=]+(\d{1,2}(?:\.\d{1,2})?)`)

	calciumValueRe  = regexp.MustCompile(`(?i)(?:serum\s+)?calcium[:\s]+(\d{1,2}(?:\.\d)?)\s*(?:mg|mmol)`)
	calciumLowRe    = regexp.MustCompile(`(?i)\blow\s+calcium\b|\bcalcium\s+deficien`)
	calciumNormalRe = regexp.MustCompile(`(?i)\bnormal\s+calcium\b|\bcalcium\s+normal\b`)
	calciumHighRe   = regexp.MustCompile(`(?i)\bhigh\s+calcium\b|\bhypercalcaemi`)

	vitDValueRe      = regexp.MustCompile(`(?i)vitamin[\s-]?d(?:\s+level)?[:\s=]+(\d{1,3}(?:\.\d)?)\s*(?:ng|nmol)`)
	vitDHydroxyRe    = regexp.MustCompile(`(?i)\b25[\s-]?oh[\s-]?(?:vitamin[\s-]?)?d[:\s=]+(\d{1,3}(?:\.\d)?)`)
	vitDDeficientRe  = regexp.MustCompile(`(?i)\bvitamin\s*d\s+deficien|\blow\s+vitamin\s*d\b`)
	vitDSufficientRe = regexp.MustCompile(`(?i)\bnormal\s+vitamin\s*d\b|\bvitamin\s*d\s+(?:normal|sufficient|adequate)\b`)

	sedentaryRe = regexp.MustCompile(`(?i)\bsedentary\b|\binactive\b|\bno\s+(?:exercise|physical\s+activity)\b`)
	activeRe    = regexp.MustCompile(`(?i)\bvigorous\b|\bactively\s+exercis|\bphysically\s+active\b|\bregular\s+exercise\b`)
	moderateRe  = regexp.MustCompile(`(?i)\bmoderate\b|\bwalks?\b|\boccasional\s+exercise\b`)

	nonSmokerRe = regexp.MustCompile(`(?i)\bnon[\s-]?smok|\bnever\s+smok|\bex[\s-]?smok|\bformer\s+smok\b|\bno\s+(?:smoking|tobacco)\b`)
	smokerRe    = regexp.MustCompile(`(?i)\bsmok(?:er|ing|es)\b|\bcurrent\s+smok\b|\bcigarette\b|\btobacco\b`)

	alcoholHeavyRe      = regexp.MustCompile(`(?i)\bheavy\s+drink|\bregular\s+alcohol|\bexcessive\s+alcohol\b|\balcohol\s+abuse\b`)
	alcoholOccasionalRe = regexp.MustCompile(`(?i)\bocca?s?ional\s+(?:drink|alcohol)\b|\bsocial\s+drink\b|\b1[\s-]2\s+drink`)
	alcoholNoneRe       = regexp.MustCompile(`(?i)\bnon[\s-]?drink|\bno\s+alcohol|\bteetotal\b|\bdoes\s+not\s+drink\b|\bnon[\s-]?alcoholic\b`)

	famHistoryYesRe = regexp.MustCompile(`(?i)family\s+history\s+(?:of\s+)?(?:osteoporosis|fracture)|` +
		`mother.*(?:osteoporosis|fracture)|father.*(?:osteoporosis|fracture)|` +
		`(?:osteoporosis|fracture).*(?:mother|father|parent|sibling)`)
	famHistoryNoRe = regexp.MustCompile(`(?i)no\s+family\s+history|family\s+history[:\s]+(?:none|no|negative)`)

	prevFractureYesRe = regexp.MustCompile(`(?i)previous\s+fracture|prior\s+fracture|history\s+of\s+fracture|` +
		`past\s+fracture|fragility\s+fracture|sustained\s+a\s+fracture`)
	prevFractureNoRe = regexp.MustCompile(`(?i)no\s+(?:previous|prior|past)\s+fracture|fracture\s+history[:\s]+(?:none|no)`)

	menopauseYesRe = regexp.MustCompile(`(?i)\bpost[\s-]?menopaus|\bmenopaus(?:al|e)\b`)
	menopauseNoRe  = regexp.MustCompile(`(?i)\bpre[\s-]?menopaus\b|\bnot\s+(?:yet\s+)?menopausal\b`)

	steroidsYesRe = regexp.MustCompile(`(?i)\bcorticosteroid|\bprednisone|\bprednisolone|\bdexamethasone|\bhydrocortisone|` +
		`\blong[\s-]term\s+steroid|\boral\s+steroid`)
	steroidsNoRe = regexp.MustCompile(`(?i)\bno\s+steroid|\bsteroid[\s-]?free\b`)

	tScoreRe = regexp.MustCompile(`(?i)t[\s\-]?score[\s:=of]{0,6}([+-]?\d+\.?\d*)`)
	zScoreRe = regexp.MustCompile(`(?i)z[\s\-]?score[\s:=of]{0,6}([+-]?\d+\.?\d*)`)
	bmdRe    = regexp.MustCompile(`(?i)(?:bmd|bone mineral density)[\s:=]{0,6}([0-9]\.[0-9]{1,4})`)
)

// diagKeywords is the weighted diagnostic keyword scan. The first matching
// entry that carries a label wins label ties; every matching entry adds its
// weight to the accumulated keyword risk.
var diagKeywords = []struct {
	re     *regexp.Regexp
	label  assessment.Label
	weight float64
}{
	{regexp.MustCompile(`(?i)\bosteoporosis\b`), assessment.Osteoporosis, 3.0},
	{regexp.MustCompile(`(?i)\bosteopenia\b`), assessment.Osteopenia, 0.0},
	{regexp.MustCompile(`(?i)\bnormal bone density\b`), assessment.Normal, 0.0},
	{regexp.MustCompile(`(?i)\bnormal\b`), assessment.Normal, 0.0},
	{regexp.MustCompile(`(?i)\blow bone(?:\s+mineral)?\s+density\b`), assessment.Osteopenia, 0.0},
	{regexp.MustCompile(`(?i)\bfracture\b`), "", 1.5},
	{regexp.MustCompile(`(?i)\bbone loss\b`), "", 1.0},
	{regexp.MustCompile(`(?i)\bpost.?menopaus`), "", 1.2},
	{regexp.MustCompile(`(?i)\bsteroid\b`), "", 0.8},
}

func group1(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func parseNum(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil
}

func extractAge(text string) *fieldValue {
	raw := group1(ageColonRe, text)
	if raw == "" {
		raw = group1(ageSuffixRe, text)
	}
	if raw == "" {
		return nil
	}
	v, ok := parseNum(raw)
	if !ok || v < 10 || v > 110 {
		return nil
	}
	return &fieldValue{v, fmt.Sprintf("%d yrs", int(v))}
}

func extractGender(text string) *fieldValue {
	if femaleRe.MatchString(text) {
		return &fieldValue{0.0, "Female"}
	}
	if maleRe.MatchString(text) {
		return &fieldValue{1.0, "Male"}
	}
	return nil
}

func extractWeight(text string) *fieldValue {
	raw := group1(weightLabeledRe, text)
	if raw == "" {
		raw = group1(weightBareRe, text)
	}
	if raw == "" {
		return nil
	}
	v, ok := parseNum(raw)
	if !ok || v < 20 || v > 300 {
		return nil
	}
	return &fieldValue{v, fmt.Sprintf("%.1f kg", v)}
}

func extractHeight(text string) *fieldValue {
	raw := group1(heightLabeledRe, text)
	if raw == "" {
		raw = group1(heightBareRe, text)
	}
	if raw != "" {
		if v, ok := parseNum(raw); ok && v >= 100 && v <= 220 {
			return &fieldValue{v, fmt.Sprintf("%.0f cm", v)}
		}
	}
	if raw := group1(heightMetresRe, text); raw != "" {
		if v, ok := parseNum(raw); ok {
			v *= 100
			if v >= 100 && v <= 220 {
				return &fieldValue{v, fmt.Sprintf("%.0f cm", v)}
			}
		}
	}
	return nil
}

func extractBMI(text string, weight, height *fieldValue) *fieldValue {
	if raw := group1(bmiRe, text); raw != "" {
		if v, ok := parseNum(raw); ok && v >= 10 && v <= 60 {
			return &fieldValue{v, fmt.Sprintf("%.1f kg/m2", v)}
		}
	}
	if weight != nil && height != nil {
		h := height.value / 100
		v := assessment.Round(weight.value/(h*h), 1)
		if v >= 10 && v <= 60 {
			return &fieldValue{v, fmt.Sprintf("%.1f kg/m2 (calc.)", v)}
		}
	}
	return nil
}

func extractCalcium(text string) *fieldValue {
	if raw := group1(calciumValueRe, text); raw != "" {
		if v, ok := parseNum(raw); ok {
			switch {
			case v < 8.5:
				return &fieldValue{0.0, fmt.Sprintf("Low (%.1f mg/dL)", v)}
			case v > 10.5:
				return &fieldValue{2.0, fmt.Sprintf("High (%.1f mg/dL)", v)}
			default:
				return &fieldValue{1.0, fmt.Sprintf("Normal (%.1f mg/dL)", v)}
			}
		}
	}
	if calciumLowRe.MatchString(text) {
		return &fieldValue{0.0, "Low (stated)"}
	}
	if calciumNormalRe.MatchString(text) {
		return &fieldValue{1.0, "Normal (stated)"}
	}
	if calciumHighRe.MatchString(text) {
		return &fieldValue{2.0, "High (stated)"}
	}
	return nil
}

func extractVitaminD(text string) *fieldValue {
	raw := group1(vitDValueRe, text)
	if raw == "" {
		raw = group1(vitDHydroxyRe, text)
	}
	if raw != "" {
		if v, ok := parseNum(raw); ok {
			// ng/mL vs nmol/L: high readings imply the nmol scale.
			threshold := 20.0
			if v > 30 {
				threshold = 50.0
			}
			if v < threshold {
				return &fieldValue{0.0, fmt.Sprintf("Deficient (%.0f)", v)}
			}
			return &fieldValue{1.0, fmt.Sprintf("Sufficient (%.0f)", v)}
		}
	}
	if vitDDeficientRe.MatchString(text) {
		return &fieldValue{0.0, "Deficient (stated)"}
	}
	if vitDSufficientRe.MatchString(text) {
		return &fieldValue{1.0, "Sufficient (stated)"}
	}
	return nil
}

func extractActivity(text string) *fieldValue {
	if sedentaryRe.MatchString(text) {
		return &fieldValue{0.0, "Sedentary"}
	}
	if activeRe.MatchString(text) {
		return &fieldValue{2.0, "Active"}
	}
	if moderateRe.MatchString(text) {
		return &fieldValue{1.0, "Moderate"}
	}
	return nil
}

func extractSmoking(text string) *fieldValue {
	if nonSmokerRe.MatchString(text) {
		return &fieldValue{0.0, "Non-smoker"}
	}
	if smokerRe.MatchString(text) {
		return &fieldValue{1.0, "Smoker"}
	}
	return nil
}

func extractAlcohol(text string) *fieldValue {
	if alcoholHeavyRe.MatchString(text) {
		return &fieldValue{2.0, "Regular"}
	}
	if alcoholOccasionalRe.MatchString(text) {
		return &fieldValue{1.0, "Occasional"}
	}
	if alcoholNoneRe.MatchString(text) {
		return &fieldValue{0.0, "None"}
	}
	return nil
}

func extractFamilyHistory(text string) *fieldValue {
	if famHistoryYesRe.MatchString(text) {
		return &fieldValue{1.0, "Positive"}
	}
	if famHistoryNoRe.MatchString(text) {
		return &fieldValue{0.0, "None"}
	}
	return nil
}

func extractPrevFracture(text string) *fieldValue {
	if prevFractureYesRe.MatchString(text) {
		return &fieldValue{1.0, "Yes"}
	}
	if prevFractureNoRe.MatchString(text) {
		return &fieldValue{0.0, "None"}
	}
	return nil
}

func extractMenopause(text string) *fieldValue {
	if menopauseYesRe.MatchString(text) {
		return &fieldValue{1.0, "Yes"}
	}
	if menopauseNoRe.MatchString(text) {
		return &fieldValue{0.0, "No"}
	}
	return nil
}

func extractSteroids(text string) *fieldValue {
	if steroidsYesRe.MatchString(text) {
		return &fieldValue{1.0, "Yes"}
	}
	if steroidsNoRe.MatchString(text) {
		return &fieldValue{0.0, "No"}
	}
	return nil
}

// extractedFields holds the 14 independently recovered clinical fields.
// A nil entry means the field was not found in the text.
type extractedFields struct {
	age, gender, weight, height, bmi              *fieldValue
	calcium, vitaminD, activity, smoking, alcohol *fieldValue
	familyHistory, prevFracture                   *fieldValue
	menopause, steroids                           *fieldValue
}

func (e extractedFields) all() []struct {
	name string
	v    *fieldValue
} {
	return []struct {
		name string
		v    *fieldValue
	}{
		{"Age", e.age},
		{"Gender", e.gender},
		{"Weight", e.weight},
		{"Height", e.height},
		{"BMI", e.bmi},
		{"Calcium Intake", e.calcium},
		{"Vitamin D", e.vitaminD},
		{"Physical Activity", e.activity},
		{"Smoking", e.smoking},
		{"Alcohol", e.alcohol},
		{"Family History", e.familyHistory},
		{"Previous Fracture", e.prevFracture},
		{"Menopause", e.menopause},
		{"Steroid Use", e.steroids},
	}
}

func (e extractedFields) coverage() int {
	n := 0
	for _, f := range e.all() {
		if f.v != nil {
			n++
		}
	}
	return n
}

// vector assembles the 14-value feature vector, filling unrecovered fields
// with clinically plausible defaults. Menopause defaults to positive for
// women of at least 50.
func (e extractedFields) vector() []float64 {
	val := func(f *fieldValue, def float64) float64 {
		if f != nil {
			return f.value
		}
		return def
	}
	age := val(e.age, 55.0)
	gender := val(e.gender, 0.0)
	weight := val(e.weight, 65.0)
	height := val(e.height, 163.0)
	h := height / 100
	bmi := val(e.bmi, assessment.Round(weight/(h*h), 1))
	menoDefault := 0.0
	if gender == 0 && age >= 50 {
		menoDefault = 1.0
	}
	return []float64{
		age, gender, weight, height, bmi,
		val(e.calcium, 1.0), val(e.vitaminD, 1.0), val(e.activity, 1.0),
		val(e.smoking, 0.0), val(e.alcohol, 0.0),
		val(e.familyHistory, 0.0), val(e.prevFracture, 0.0),
		val(e.menopause, menoDefault), val(e.steroids, 0.0),
	}
}

// evidence is everything recovered from one document: clinical fields,
// direct T-score/BMD readings, the keyword scan, and the display map.
type evidence struct {
	fields       extractedFields
	tScore       *float64
	bmd          *float64
	keywordLabel assessment.Label
	keywordRisk  float64
	display      map[string]string
}

// gatherEvidence runs every extractor over the text.
func gatherEvidence(text string) evidence {
	weight := extractWeight(text)
	height := extractHeight(text)
	ev := evidence{
		fields: extractedFields{
			age:           extractAge(text),
			gender:        extractGender(text),
			weight:        weight,
			height:        height,
			bmi:           extractBMI(text, weight, height),
			calcium:       extractCalcium(text),
			vitaminD:      extractVitaminD(text),
			activity:      extractActivity(text),
			smoking:       extractSmoking(text),
			alcohol:       extractAlcohol(text),
			familyHistory: extractFamilyHistory(text),
			prevFracture:  extractPrevFracture(text),
			menopause:     extractMenopause(text),
			steroids:      extractSteroids(text),
		},
		display: map[string]string{},
	}
	for _, f := range ev.fields.all() {
		if f.v != nil {
			ev.display[f.name] = f.v.display
		}
	}

	if raw := group1(tScoreRe, text); raw != "" {
		if v, ok := parseNum(raw); ok && v >= -6.0 && v <= 3.0 {
			ev.tScore = &v
			ev.display["T-score"] = fmt.Sprintf("%+.2f", v)
		}
	}
	if ev.tScore == nil {
		if raw := group1(zScoreRe, text); raw != "" {
			if v, ok := parseNum(raw); ok && v >= -5.0 && v <= 3.0 {
				t := assessment.Round(v-1.0, 2)
				ev.tScore = &t
				ev.display["Z-score"] = fmt.Sprintf("%+.2f (converted)", v)
			}
		}
	}
	if raw := group1(bmdRe, text); raw != "" {
		if v, ok := parseNum(raw); ok && v >= 0.3 && v <= 1.8 {
			ev.bmd = &v
			ev.display["BMD"] = fmt.Sprintf("%.3f g/cm2", v)
		}
	}

	for _, kw := range diagKeywords {
		if kw.re.MatchString(text) {
			ev.keywordRisk += kw.weight
			if kw.label != "" && ev.keywordLabel == "" {
				ev.keywordLabel = kw.label
			}
		}
	}
	if ev.keywordLabel != "" {
		ev.display["Diagnosis (keyword)"] = string(ev.keywordLabel)
	}
	return ev
}
