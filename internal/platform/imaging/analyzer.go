// Package imaging implements heuristic bone-density analysis of radiographic
// images. It computes an intensity/texture feature profile from a grayscale
// rendering of the upload and maps it to a classification with calibrated
// confidence, serving as the prediction path when no CNN model is loaded.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/osteocare/osteocare/internal/domain/assessment"
)

// ErrInsufficientBone is returned when the filtered image carries too few
// in-range pixels to analyse. Callers fall back to the hash-derived result.
var ErrInsufficientBone = errors.New("too few bone pixels")

// Pixels at or below bgLow are background (black backdrop); at or above
// bgHigh they are saturated (overexposed white). Both are excluded from the
// bone profile.
const (
	bgLow  = 20
	bgHigh = 248
)

// Density-score thresholds separating the classes.
const (
	normalDS     = 0.570
	osteopeniaDS = 0.390
)

const maxDim = 400

// Features is the diagnostic feature profile of one image.
type Features struct {
	MeanIntensity float64
	StdIntensity  float64
	P10           float64
	P25           float64
	P50           float64
	P75           float64
	P90           float64
	BrightRatio   float64 // dense cortical band, > 180
	MidRatio      float64 // 80..180
	DarkRatio     float64 // sparse/porous, < 80
	Cortical      float64 // very bright fraction, > 200
	TrabScore     float64 // normalized local block variance
	EdgeNorm      float64 // normalized mean absolute gradient
	EntropyNorm   float64 // normalized 32-bin Shannon entropy
	BonePixels    int
}

// Result is the analyzer's classification output.
type Result struct {
	Label        assessment.Label
	Confidence   float64
	TScore       float64
	BMD          float64
	DensityScore float64
}

func percentile(sorted []int, p float64) float64 {
	if len(sorted) == 0 {
		return 128.0
	}
	k := float64(len(sorted)-1) * p / 100.0
	lo := int(k)
	hi := lo + 1
	if hi > len(sorted)-1 {
		hi = len(sorted) - 1
	}
	return float64(sorted[lo]) + (k-float64(lo))*float64(sorted[hi]-sorted[lo])
}

func shannonEntropy(pixels []int) float64 {
	if len(pixels) == 0 {
		return 0.0
	}
	const bins = 32
	const step = 256.0 / bins
	var counts [bins]int
	for _, p := range pixels {
		i := int(float64(p) / step)
		if i > bins-1 {
			i = bins - 1
		}
		counts[i]++
	}
	n := float64(len(pixels))
	entropy := 0.0
	for _, c := range counts {
		if c > 0 {
			pv := float64(c) / n
			entropy -= pv * math.Log2(pv)
		}
	}
	return entropy
}

// blockVariance is the mean local variance across non-overlapping 8x8
// patches of the unfiltered image.
func blockVariance(pixels []int, width, height, block int) float64 {
	var sum float64
	var n int
	for by := 0; by < height-block; by += block {
		for bx := 0; bx < width-block; bx += block {
			var m float64
			for dy := 0; dy < block; dy++ {
				for dx := 0; dx < block; dx++ {
					m += float64(pixels[(by+dy)*width+bx+dx])
				}
			}
			size := float64(block * block)
			m /= size
			var v float64
			for dy := 0; dy < block; dy++ {
				for dx := 0; dx < block; dx++ {
					d := float64(pixels[(by+dy)*width+bx+dx]) - m
					v += d * d
				}
			}
			sum += v / size
			n++
		}
	}
	if n == 0 {
		return 500.0
	}
	return sum / float64(n)
}

// gradientDensity is the mean absolute pixel gradient, horizontal plus
// vertical, over the unfiltered image.
func gradientDensity(pixels []int, width, height int) float64 {
	var total float64
	var count int
	for y := 0; y < height; y++ {
		for x := 0; x < width-1; x++ {
			total += math.Abs(float64(pixels[y*width+x] - pixels[y*width+x+1]))
			count++
		}
	}
	for y := 0; y < height-1; y++ {
		for x := 0; x < width; x++ {
			total += math.Abs(float64(pixels[y*width+x] - pixels[(y+1)*width+x]))
			count++
		}
	}
	if count == 0 {
		return 30.0
	}
	return total / float64(count)
}

func round(v float64, places int) float64 { return assessment.Round(v, places) }

// grayPixels decodes the upload to grayscale, resamples the longest side down
// to 400 px, and returns row-major 0..255 intensities.
func grayPixels(data []byte) ([]int, int, int, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)

	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest > maxDim {
		scale := float64(maxDim) / float64(longest)
		nw := int(float64(w) * scale)
		nh := int(float64(h) * scale)
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}
		scaled := image.NewGray(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), gray, gray.Bounds(), draw.Src, nil)
		gray, w, h = scaled, nw, nh
	}

	pixels := make([]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pixels[y*w+x] = int(gray.GrayAt(x, y).Y)
		}
	}
	return pixels, w, h, nil
}

// ExtractFeatures decodes an image and computes its full diagnostic feature
// profile. It returns ErrInsufficientBone when fewer than 100 pixels survive
// the background/saturation filter.
func ExtractFeatures(data []byte) (Features, error) {
	raw, w, h, err := grayPixels(data)
	if err != nil {
		return Features{}, err
	}
	if len(raw) == 0 {
		return Features{}, fmt.Errorf("empty image: %w", ErrInsufficientBone)
	}

	bone := make([]int, 0, len(raw))
	for _, p := range raw {
		if p > bgLow && p < bgHigh {
			bone = append(bone, p)
		}
	}
	if len(bone) < 100 {
		return Features{}, ErrInsufficientBone
	}
	n := float64(len(bone))

	boneSorted := append([]int(nil), bone...)
	sort.Ints(boneSorted)

	var sum float64
	for _, p := range bone {
		sum += float64(p)
	}
	mean := sum / n
	var varI float64
	for _, p := range bone {
		d := float64(p) - mean
		varI += d * d
	}
	varI /= n

	var bright, mid, dark, cortical int
	for _, p := range bone {
		switch {
		case p > 180:
			bright++
		case p >= 80:
			mid++
		default:
			dark++
		}
		if p > 200 {
			cortical++
		}
	}

	trab := math.Min(1.0, blockVariance(raw, w, h, 8)/2000.0)
	edge := math.Min(1.0, gradientDensity(raw, w, h)/60.0)
	entropy := math.Min(1.0, shannonEntropy(bone)/5.0)

	return Features{
		MeanIntensity: round(mean, 1),
		StdIntensity:  round(math.Sqrt(varI), 1),
		P10:           round(percentile(boneSorted, 10), 1),
		P25:           round(percentile(boneSorted, 25), 1),
		P50:           round(percentile(boneSorted, 50), 1),
		P75:           round(percentile(boneSorted, 75), 1),
		P90:           round(percentile(boneSorted, 90), 1),
		BrightRatio:   round(float64(bright)/n, 4),
		MidRatio:      round(float64(mid)/n, 4),
		DarkRatio:     round(float64(dark)/n, 4),
		Cortical:      round(float64(cortical)/n, 4),
		TrabScore:     round(trab, 4),
		EdgeNorm:      round(edge, 4),
		EntropyNorm:   round(entropy, 4),
		BonePixels:    len(bone),
	}, nil
}

// Biomarkers maps the feature profile to a classification. The density score
// is a weighted combination of six sub-scores, each normalized to [0, 1]
// where 1 means healthy dense bone; the weights were tuned against DXA
// T-score correlations and must not be re-balanced.
func (f Features) Biomarkers() Result {
	subs := []float64{
		f.MeanIntensity / 220.0, // 220 = typical bright bone
		f.P25 / 200.0,           // 25th percentile avoids background bias
		f.Cortical,
		1.0 - f.DarkRatio, // less dark = better
		f.EdgeNorm,        // strong edges = well-defined margins
		f.EntropyNorm,
	}
	weights := []float64{0.30, 0.25, 0.20, 0.15, 0.05, 0.05}
	var ds float64
	for i, s := range subs {
		ds += weights[i] * assessment.Clamp(s, 0.0, 1.0)
	}

	var label assessment.Label
	switch {
	case ds >= normalDS:
		label = assessment.Normal
	case ds >= osteopeniaDS:
		label = assessment.Osteopenia
	default:
		label = assessment.Osteoporosis
	}

	// density 1.0 -> T +1.5, 0.57 -> -1.0, 0.39 -> -2.5, 0.0 -> -5.5
	tScore := round(1.5-(1.0-ds)*7.0, 2)
	tScore = assessment.Clamp(tScore, -5.5, 2.5)

	bmd := round(0.95+tScore*0.12, 3)
	bmd = assessment.Clamp(bmd, 0.35, 1.30)

	var base float64
	switch label {
	case assessment.Normal:
		base = 0.73 + math.Min(0.22, (ds-normalDS)*3.0)
	case assessment.Osteopenia:
		bandMid := (normalDS + osteopeniaDS) / 2.0
		rel := math.Abs(ds-bandMid) / ((normalDS - osteopeniaDS) / 2.0)
		base = 0.71 + 0.19*(1.0-math.Min(1, rel))
	default:
		base = 0.72 + math.Min(0.23, (osteopeniaDS-ds)*3.0)
	}
	// Well-defined bone margins make the read more reliable.
	bonus := math.Min(0.04, f.EdgeNorm*0.08)
	confidence := round(assessment.Clamp(base+bonus, 0.68, 0.96), 4)

	return Result{
		Label:        label,
		Confidence:   confidence,
		TScore:       tScore,
		BMD:          bmd,
		DensityScore: ds,
	}
}

// FromProbabilities classifies from a 3-class probability vector
// (Normal, Osteopenia, Osteoporosis order), deriving T-score and BMD from the
// winning class and its confidence.
func FromProbabilities(proba []float64) (Result, error) {
	if len(proba) != 3 {
		return Result{}, fmt.Errorf("expected 3 class probabilities, got %d", len(proba))
	}
	best := 0
	for i := 1; i < 3; i++ {
		if proba[i] > proba[best] {
			best = i
		}
	}
	label := assessment.FromClass(best)
	confidence := proba[best]
	tScore := assessment.TScoreWithin(label, confidence)
	bmd := assessment.BMDFromT(tScore)
	return Result{
		Label:      label,
		Confidence: round(confidence, 4),
		TScore:     tScore,
		BMD:        bmd,
	}, nil
}

func groupThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}

// DisplayMetrics renders the feature profile as the human-readable diagnostic
// panel shown alongside the prediction.
func (f Features) DisplayMetrics(tScore, bmd float64) map[string]string {
	corticalPct := round(f.Cortical*100, 1)
	darkPct := round(f.DarkRatio*100, 1)
	brightPct := round(f.BrightRatio*100, 1)

	corticalLabel := "Low"
	switch {
	case corticalPct > 25:
		corticalLabel = "Excellent"
	case corticalPct > 12:
		corticalLabel = "Good"
	case corticalPct > 5:
		corticalLabel = "Reduced"
	}
	trabLabel := "Complex/Porous"
	switch {
	case f.TrabScore < 0.30:
		trabLabel = "Dense"
	case f.TrabScore < 0.60:
		trabLabel = "Moderate"
	}
	edgeLabel := "Subtle"
	switch {
	case f.EdgeNorm > 0.55:
		edgeLabel = "Sharp"
	case f.EdgeNorm > 0.30:
		edgeLabel = "Moderate"
	}

	return map[string]string{
		"Mean Intensity":       fmt.Sprintf("%.0f / 255", f.MeanIntensity),
		"Cortical Shell":       fmt.Sprintf("%.1f%% - %s", corticalPct, corticalLabel),
		"Dense Bone Pixels":    fmt.Sprintf("%.1f%%", brightPct),
		"Sparse/Porous Pixels": fmt.Sprintf("%.1f%%", darkPct),
		"Trabecular Pattern":   fmt.Sprintf("%s (var=%.2f)", trabLabel, f.TrabScore),
		"Edge Clarity":         fmt.Sprintf("%s (%.2f)", edgeLabel, f.EdgeNorm),
		"Bone Pixel Count":     groupThousands(f.BonePixels) + " px",
		"Intensity Spread":     fmt.Sprintf("p10=%.0f  p50=%.0f  p90=%.0f", f.P10, f.P50, f.P90),
		"Estimated T-score":    fmt.Sprintf("%+.2f", tScore),
		"Estimated BMD":        fmt.Sprintf("%.3f g/cm²", bmd),
	}
}
