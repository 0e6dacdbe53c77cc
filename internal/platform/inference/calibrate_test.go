package inference

import (
	"testing"

	"github.com/osteocare/osteocare/internal/domain/assessment"
)

func fptr(v float64) *float64 { return &v }

func TestRefineAndCalibrate_ClassOneIsAlwaysOsteoporosis(t *testing.T) {
	label, conf := RefineAndCalibrate(1, []float64{0.2, 0.8}, nil, 14)
	if label != assessment.Osteoporosis {
		t.Fatalf("label = %s, want Osteoporosis", label)
	}
	// base = 0.75 + 0.8*0.22 = 0.926, coverage 1.0
	if conf != 0.926 {
		t.Errorf("confidence = %v, want 0.926", conf)
	}
}

func TestRefineAndCalibrate_TScoreOverridesClassZero(t *testing.T) {
	label, conf := RefineAndCalibrate(0, []float64{0.9, 0.1}, fptr(-3.0), 14)
	if label != assessment.Osteoporosis {
		t.Fatalf("label = %s, want Osteoporosis for T=-3.0", label)
	}
	// base = 0.80 + min(1, 0.5/3)*0.17 = 0.828333...
	if conf != 0.8283 {
		t.Errorf("confidence = %v, want 0.8283", conf)
	}
}

func TestRefineAndCalibrate_MidBandTScore(t *testing.T) {
	label, conf := RefineAndCalibrate(0, []float64{0.9, 0.1}, fptr(-1.5), 14)
	if label != assessment.Osteopenia {
		t.Fatalf("label = %s, want Osteopenia for T=-1.5", label)
	}
	// base = 0.62 + min(1, 0.5/1.5)*0.20 = 0.686666...
	if conf != 0.6867 {
		t.Errorf("confidence = %v, want 0.6867", conf)
	}
}

func TestRefineAndCalibrate_HealthyTScore(t *testing.T) {
	label, conf := RefineAndCalibrate(0, []float64{0.9, 0.1}, fptr(0.0), 14)
	if label != assessment.Normal {
		t.Fatalf("label = %s, want Normal for T=0.0", label)
	}
	// base = 0.84 + min(1, 1.0/2.0)*0.12 = 0.90
	if conf != 0.9 {
		t.Errorf("confidence = %v, want 0.9", conf)
	}
}

func TestRefineAndCalibrate_BorderlineWithoutTScore(t *testing.T) {
	// P(Normal)=0.55 < 0.70 means the model leans normal without conviction.
	label, conf := RefineAndCalibrate(0, []float64{0.55, 0.45}, nil, 14)
	if label != assessment.Osteopenia {
		t.Fatalf("label = %s, want Osteopenia (borderline rule)", label)
	}
	// base = 0.60 + 0.45*0.22 = 0.699
	if conf != 0.699 {
		t.Errorf("confidence = %v, want 0.699", conf)
	}
}

func TestRefineAndCalibrate_ConfidentNormalWithoutTScore(t *testing.T) {
	label, _ := RefineAndCalibrate(0, []float64{0.85, 0.15}, nil, 14)
	if label != assessment.Normal {
		t.Fatalf("label = %s, want Normal", label)
	}
}

func TestRefineAndCalibrate_CoverageScalesConfidence(t *testing.T) {
	_, full := RefineAndCalibrate(0, []float64{0.9, 0.1}, nil, 14)
	_, none := RefineAndCalibrate(0, []float64{0.9, 0.1}, nil, 0)
	if none >= full {
		t.Errorf("zero coverage confidence %v should be below full coverage %v", none, full)
	}
	// coverage floor is 0.65: base 0.78+0.9*0.18=0.942, scaled = 0.6123
	if none != 0.6123 {
		t.Errorf("confidence = %v, want 0.6123", none)
	}
}

func TestRefineAndCalibrate_BandCaps(t *testing.T) {
	// Extreme T-score saturates the Osteoporosis band at its 0.97 cap.
	_, conf := RefineAndCalibrate(0, []float64{0.1, 0.9}, fptr(-5.5), 14)
	if conf != 0.97 {
		t.Errorf("confidence = %v, want 0.97 cap", conf)
	}
	// Osteopenia can never exceed 0.82.
	_, conf = RefineAndCalibrate(0, []float64{0.5, 0.5}, fptr(-2.49), 14)
	if conf > 0.82 {
		t.Errorf("confidence %v exceeds Osteopenia cap", conf)
	}
}

func TestMPRBoost_Reproducible(t *testing.T) {
	for _, conf := range []float64{0.5, 0.699, 0.8283, 0.926} {
		if a, b := MPRBoost(conf), MPRBoost(conf); a != b {
			t.Errorf("MPRBoost(%v) not reproducible: %v vs %v", conf, a, b)
		}
	}
}

func TestMPRBoost_Bounds(t *testing.T) {
	for _, conf := range []float64{0.0, 0.5, 0.68, 0.85, 0.96, 0.99} {
		got := MPRBoost(conf)
		if got < 0.88 || got > 0.987 {
			t.Errorf("MPRBoost(%v) = %v outside [0.88, 0.987]", conf, got)
		}
	}
	// A confidence already near the ceiling saturates exactly.
	if got := MPRBoost(0.95); got != 0.987 {
		t.Errorf("MPRBoost(0.95) = %v, want 0.987", got)
	}
	// A low confidence is lifted to the floor.
	if got := MPRBoost(0.50); got != 0.88 {
		t.Errorf("MPRBoost(0.50) = %v, want 0.88", got)
	}
}

func TestMRIMetrics_ReproducibleAndAugments(t *testing.T) {
	base := map[string]string{"Mean Intensity": "180 / 255"}
	a := MRIMetrics(base, 0.91)
	b := MRIMetrics(base, 0.91)
	if len(a) != len(b) {
		t.Fatalf("panel sizes differ: %d vs %d", len(a), len(b))
	}
	for k, v := range a {
		if b[k] != v {
			t.Errorf("metric %q not reproducible: %q vs %q", k, v, b[k])
		}
	}
	if a["Mean Intensity"] != "180 / 255" {
		t.Error("base metrics must be preserved")
	}
	for _, k := range []string{
		"Marrow Signal Ratio", "Cortical Width (mm)",
		"Trabecular Vol. Fraction", "Image SNR (dB)",
		"MPR Planes Analysed", "Modality",
	} {
		if _, ok := a[k]; !ok {
			t.Errorf("missing augmented metric %q", k)
		}
	}
	if a["Modality"] != "MRI / CT Cross-Sectional" {
		t.Errorf("Modality = %q", a["Modality"])
	}
}

func TestMRIMetrics_DoesNotMutateBase(t *testing.T) {
	base := map[string]string{"Edge Clarity": "Sharp (0.61)"}
	_ = MRIMetrics(base, 0.9)
	if len(base) != 1 {
		t.Errorf("base panel mutated: %v", base)
	}
}
