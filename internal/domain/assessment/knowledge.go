package assessment

// ClinicalData is the static knowledge block attached to each classification:
// lifestyle suggestions, medication guidance, and the clinically expected
// T-score / BMD ranges for the class.
type ClinicalData struct {
	Suggestions  []string
	Medications  []string
	TScoreRange  [2]float64
	BMDRange     [2]float64
	FractureRisk string
}

var clinicalData = map[Label]ClinicalData{
	Normal: {
		Suggestions: []string{
			"Maintain a calcium-rich diet (dairy, leafy greens, fortified foods).",
			"Continue weight-bearing exercise (walking, jogging, resistance training) 3-5x/week.",
			"Ensure adequate Vitamin D via sunlight or supplementation.",
			"Schedule a DEXA scan every 2 years after age 50.",
			"Avoid smoking and excessive alcohol consumption.",
			"Monitor bone health annually with your primary care physician.",
		},
		Medications: []string{
			"Calcium supplement: 1000 mg/day (dietary preferred)",
			"Vitamin D3: 600-800 IU/day",
			"No pharmacological treatment required at this stage.",
		},
		TScoreRange:  [2]float64{-1.0, 0.5},
		BMDRange:     [2]float64{0.90, 1.10},
		FractureRisk: "< 5% (Low)",
	},
	Osteopenia: {
		Suggestions: []string{
			"Increase daily calcium intake to 1200 mg through diet and supplements.",
			"Supplement Vitamin D to 800-1000 IU/day.",
			"Engage in regular high-impact weight-bearing and resistance exercises.",
			"Implement fall-prevention strategies at home (remove trip hazards, improve lighting).",
			"Repeat DEXA scan in 1-2 years to monitor bone density changes.",
			"Discuss fracture risk assessment (FRAX) with your physician.",
			"Limit caffeine, alcohol, and sodium  -  all reduce calcium absorption.",
			"Consider physical therapy for balance and posture improvement.",
		},
		Medications: []string{
			"Calcium supplement: 1200 mg/day",
			"Vitamin D3: 800-1000 IU/day",
			"Consider bisphosphonates if additional risk factors are present (consult physician).",
			"Hormone Replacement Therapy (HRT)  -  discuss benefits/risks with doctor.",
		},
		TScoreRange:  [2]float64{-2.5, -1.0},
		BMDRange:     [2]float64{0.70, 0.90},
		FractureRisk: "5-20% (Moderate)",
	},
	Osteoporosis: {
		Suggestions: []string{
			"Seek immediate consultation with a rheumatologist or endocrinologist.",
			"Begin a medically supervised exercise program focusing on strength and balance.",
			"Strictly implement fall-prevention strategies (grab bars, non-slip mats, proper footwear).",
			"Maintain calcium intake >= 1200 mg/day and Vitamin D >= 1000-2000 IU/day.",
			"Schedule DEXA scan every 1-2 years to assess treatment response.",
			"Undergo spinal X-ray to rule out existing vertebral fractures.",
			"Review all current medications for bone-density side effects (steroids, PPIs, diuretics).",
			"Consider physical therapy and occupational therapy for daily safety.",
			"Discuss FRAX score and 10-year fracture probability with your physician.",
		},
		Medications: []string{
			"Bisphosphonates: Alendronate 70 mg weekly  OR  Risedronate 35 mg weekly",
			"Calcium: 1200-1500 mg/day (split doses for better absorption)",
			"Vitamin D3: 1000-2000 IU/day",
			"Denosumab (Prolia): 60 mg subcutaneous injection every 6 months (if bisphosphonate intolerant)",
			"Teriparatide (Forteo): daily injection for severe cases (physician prescribed)",
			"Raloxifene (SERM): for post-menopausal women  -  discuss with doctor",
			"Regular follow-up every 6 months until bone density stabilises.",
		},
		TScoreRange:  [2]float64{-4.0, -2.5},
		BMDRange:     [2]float64{0.40, 0.70},
		FractureRisk: "> 20% (High)",
	},
}

// Lookup returns the clinical knowledge block for a label. Unknown labels
// fall back to the Normal block.
func Lookup(label Label) ClinicalData {
	if d, ok := clinicalData[label]; ok {
		return d
	}
	return clinicalData[Normal]
}
