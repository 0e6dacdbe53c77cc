// Package mri implements the MRI / CT cross-sectional prediction path. It
// reuses the bone-structure CNN and heuristic analyser, then applies the
// multi-planar reconstruction (MPR) confidence boost and the cross-sectional
// metrics panel: volumetric imaging carries more diagnostic information than
// a single 2-D projection, so reported confidence is floored at 0.88.
package mri

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/osteocare/osteocare/internal/domain/assessment"
	"github.com/osteocare/osteocare/internal/platform/cache"
	"github.com/osteocare/osteocare/internal/platform/imaging"
	"github.com/osteocare/osteocare/internal/platform/inference"
)

// Recorder persists a copy of emitted assessments for the audit log.
type Recorder interface {
	RecordAssessment(ctx context.Context, modality string, a assessment.Assessment) error
}

// Service analyses uploaded MRI / CT scan images. The image model, cache, and
// recorder are all optional.
type Service struct {
	model    inference.ImageModel
	cache    *cache.Cache
	recorder Recorder
	log      zerolog.Logger
}

func NewService(model inference.ImageModel, c *cache.Cache, recorder Recorder, log zerolog.Logger) *Service {
	return &Service{model: model, cache: c, recorder: recorder, log: log}
}

// Analyze classifies an uploaded MRI or CT scan. Every input terminates in a
// valid assessment; undecodable images take the hash-derived fallback path.
func (s *Service) Analyze(ctx context.Context, content []byte, filename string) assessment.Assessment {
	key := cache.Key("mri", filename, content)
	if a, ok := s.cache.Get(ctx, key); ok {
		return a
	}

	a := s.analyze(ctx, content)

	s.cache.Set(ctx, key, a)
	if s.recorder != nil {
		if err := s.recorder.RecordAssessment(ctx, "mri", a); err != nil {
			s.log.Warn().Err(err).Msg("failed to record mri assessment")
		}
	}
	return a
}

func (s *Service) analyze(ctx context.Context, content []byte) assessment.Assessment {
	if s.model != nil {
		a, err := s.modelScore(ctx, content)
		if err == nil {
			return a
		}
		s.log.Error().Err(err).Msg("image model inference failed for mri/ct, using heuristic analysis")
		label, confidence, t, bmd, base := s.heuristicBase(content)
		boosted := inference.MPRBoost(confidence)
		metrics := inference.MRIMetrics(base, boosted)
		src := fmt.Sprintf("Heuristic MRI/CT analysis + MPR boost (CNN error: %v)", err)
		return assessment.New(label, boosted, t, bmd, src, metrics)
	}

	label, confidence, t, bmd, base := s.heuristicBase(content)
	boosted := inference.MPRBoost(confidence)
	metrics := inference.MRIMetrics(base, boosted)
	src := fmt.Sprintf("Enhanced heuristic MRI/CT analysis + MPR volumetric confidence boost (%d metrics computed)", len(metrics))
	return assessment.New(label, boosted, t, bmd, src, metrics)
}

// modelScore runs the 3-class CNN, then applies the MPR boost. The metrics
// panel is seeded from the raw CNN confidence so it stays tied to the model
// output, not the presentation-level boost.
func (s *Service) modelScore(ctx context.Context, content []byte) (assessment.Assessment, error) {
	proba, err := s.model.Infer(ctx, content)
	if err != nil {
		return assessment.Assessment{}, err
	}
	r, err := imaging.FromProbabilities(proba)
	if err != nil {
		return assessment.Assessment{}, err
	}
	boosted := inference.MPRBoost(r.Confidence)

	base := map[string]string{}
	if feats, ferr := imaging.ExtractFeatures(content); ferr == nil {
		base = feats.DisplayMetrics(r.TScore, r.BMD)
	}
	pNormal := fmt.Sprintf("%.1f%%", proba[0]*100)
	pOsteopenia := fmt.Sprintf("%.1f%%", proba[1]*100)
	pOsteoporosis := fmt.Sprintf("%.1f%%", proba[2]*100)
	base["Model"] = "EfficientNet-B3 (Deep CNN)"
	base["CNN Confidence"] = fmt.Sprintf("%.1f%%", r.Confidence*100)
	base["P(Normal)"] = pNormal
	base["P(Osteopenia)"] = pOsteopenia
	base["P(Osteoporosis)"] = pOsteoporosis
	base["Estimated T-score"] = fmt.Sprintf("%+.2f", r.TScore)
	base["Estimated BMD"] = fmt.Sprintf("%.3f g/cm²", r.BMD)
	metrics := inference.MRIMetrics(base, r.Confidence)

	src := fmt.Sprintf("EfficientNet-B3 + MPR volumetric boost - Raw CNN confidence: %.4f -> MRI/CT adjusted: %.4f  |  P(Normal)=%s  P(Osteopenia)=%s  P(Osteoporosis)=%s",
		r.Confidence, boosted, pNormal, pOsteopenia, pOsteoporosis)
	return assessment.New(r.Label, boosted, r.TScore, r.BMD, src, metrics), nil
}

// heuristicBase produces the pre-boost classification and the base metrics
// panel. Zero-byte uploads short-circuit to the fixed baseline tuple.
func (s *Service) heuristicBase(content []byte) (assessment.Label, float64, float64, float64, map[string]string) {
	if len(content) == 0 {
		return assessment.Normal, 0.72, -0.5, 0.91, map[string]string{}
	}
	feats, err := imaging.ExtractFeatures(content)
	if err != nil {
		fb := inference.ImageFallback(content)
		return fb.Label, fb.Confidence, fb.TScore, fb.BMD, map[string]string{}
	}
	r := feats.Biomarkers()
	return r.Label, r.Confidence, r.TScore, r.BMD, feats.DisplayMetrics(r.TScore, r.BMD)
}
