package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/osteocare/osteocare/internal/domain/assessment"
)

// uniformPNG encodes a w x h grayscale PNG where every pixel has the given
// intensity.
func uniformPNG(t *testing.T, w, h int, value uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = value
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestExtractFeatures_BrightUniform(t *testing.T) {
	data := uniformPNG(t, 300, 300, 200)
	f, err := ExtractFeatures(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.BonePixels != 300*300 {
		t.Errorf("bone pixels = %d, want %d", f.BonePixels, 300*300)
	}
	if f.MeanIntensity != 200.0 {
		t.Errorf("mean = %v, want 200.0", f.MeanIntensity)
	}
	if f.DarkRatio != 0 || f.Cortical != 0 {
		t.Errorf("dark = %v cortical = %v, want 0 for uniform 200", f.DarkRatio, f.Cortical)
	}
	if f.EdgeNorm != 0 || f.TrabScore != 0 {
		t.Errorf("uniform image must have zero edges and block variance, got edge=%v trab=%v",
			f.EdgeNorm, f.TrabScore)
	}
}

func TestBiomarkers_BrightUniformIsNormal(t *testing.T) {
	data := uniformPNG(t, 300, 300, 200)
	f, err := ExtractFeatures(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := f.Biomarkers()
	if r.Label != assessment.Normal {
		t.Fatalf("label = %s, want Normal", r.Label)
	}
	if r.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", r.Confidence)
	}
	if r.TScore != -0.79 {
		t.Errorf("t-score = %v, want -0.79", r.TScore)
	}
	if r.BMD != 0.855 {
		t.Errorf("bmd = %v, want 0.855", r.BMD)
	}
}

func TestBiomarkers_DarkUniformIsOsteoporosis(t *testing.T) {
	data := uniformPNG(t, 300, 300, 50)
	f, err := ExtractFeatures(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := f.Biomarkers()
	if r.Label != assessment.Osteoporosis {
		t.Fatalf("label = %s, want Osteoporosis", r.Label)
	}
	if r.TScore != -4.59 {
		t.Errorf("t-score = %v, want -4.59", r.TScore)
	}
	if r.BMD != 0.399 {
		t.Errorf("bmd = %v, want 0.399", r.BMD)
	}
}

func TestExtractFeatures_BackgroundOnlyFails(t *testing.T) {
	// Pure black is filtered out entirely.
	data := uniformPNG(t, 200, 200, 0)
	_, err := ExtractFeatures(data)
	if !errors.Is(err, ErrInsufficientBone) {
		t.Errorf("expected ErrInsufficientBone, got %v", err)
	}
}

func TestExtractFeatures_TooSmallFails(t *testing.T) {
	// 5x5 = 25 in-range pixels, below the 100-pixel floor.
	data := uniformPNG(t, 5, 5, 128)
	_, err := ExtractFeatures(data)
	if !errors.Is(err, ErrInsufficientBone) {
		t.Errorf("expected ErrInsufficientBone, got %v", err)
	}
}

func TestExtractFeatures_GarbageBytesFail(t *testing.T) {
	_, err := ExtractFeatures([]byte("this is not an image"))
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestExtractFeatures_ResamplesLargeImages(t *testing.T) {
	data := uniformPNG(t, 900, 600, 150)
	f, err := ExtractFeatures(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Longest side capped at 400: 900x600 becomes 400x266.
	if f.BonePixels > 400*267 {
		t.Errorf("bone pixels = %d, image was not resampled", f.BonePixels)
	}
	if f.MeanIntensity != 150.0 {
		t.Errorf("mean = %v, want 150.0 after resample", f.MeanIntensity)
	}
}

func TestExtractFeatures_Deterministic(t *testing.T) {
	data := uniformPNG(t, 300, 300, 120)
	a, err := ExtractFeatures(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := ExtractFeatures(data)
	if a != b {
		t.Errorf("identical bytes produced different features:\n%+v\n%+v", a, b)
	}
}

func TestFromProbabilities(t *testing.T) {
	r, err := FromProbabilities([]float64{0.1, 0.2, 0.7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Label != assessment.Osteoporosis {
		t.Errorf("label = %s, want Osteoporosis", r.Label)
	}
	if r.Confidence != 0.7 {
		t.Errorf("confidence = %v, want 0.7", r.Confidence)
	}
	if r.TScore < -4.5 || r.TScore > -2.0 {
		t.Errorf("t-score %v outside Osteoporosis range", r.TScore)
	}

	r, err = FromProbabilities([]float64{0.6, 0.3, 0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Label != assessment.Normal {
		t.Errorf("label = %s, want Normal", r.Label)
	}

	if _, err = FromProbabilities([]float64{0.5, 0.5}); err == nil {
		t.Error("expected error for short probability vector")
	}
}

func TestDisplayMetrics(t *testing.T) {
	data := uniformPNG(t, 300, 300, 200)
	f, err := ExtractFeatures(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := f.DisplayMetrics(-0.79, 0.855)
	if got := m["Mean Intensity"]; got != "200 / 255" {
		t.Errorf("Mean Intensity = %q", got)
	}
	if got := m["Bone Pixel Count"]; got != "90,000 px" {
		t.Errorf("Bone Pixel Count = %q", got)
	}
	if got := m["Estimated T-score"]; got != "-0.79" {
		t.Errorf("Estimated T-score = %q", got)
	}
	if got := m["Estimated BMD"]; got != "0.855 g/cm²" {
		t.Errorf("Estimated BMD = %q", got)
	}
	if got := m["Edge Clarity"]; got != "Subtle (0.00)" {
		t.Errorf("Edge Clarity = %q", got)
	}
	if got := m["Trabecular Pattern"]; got != "Dense (var=0.00)" {
		t.Errorf("Trabecular Pattern = %q", got)
	}
}
