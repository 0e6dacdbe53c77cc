// Package report implements the document prediction pipeline: text
// extraction, clinical field recovery, and evidence-tier selection.
package report

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/osteocare/osteocare/internal/domain/assessment"
	"github.com/osteocare/osteocare/internal/platform/cache"
	"github.com/osteocare/osteocare/internal/platform/inference"
	"github.com/osteocare/osteocare/internal/platform/scoring"
	"github.com/osteocare/osteocare/internal/platform/textextract"
)

// minFieldsForScoring is the minimum number of recovered clinical fields
// needed to trust the feature-vector scoring path.
const minFieldsForScoring = 4

// evidenceTier ranks the evidence recovered from a document. Tiers are
// evaluated in declaration order; the first satisfied tier decides the path.
type evidenceTier int

const (
	tierClinicalFields evidenceTier = iota
	tierTScore
	tierBMD
	tierKeyword
	tierFallback
)

func selectTier(ev evidence) evidenceTier {
	switch {
	case ev.fields.coverage() >= minFieldsForScoring:
		return tierClinicalFields
	case ev.tScore != nil:
		return tierTScore
	case ev.bmd != nil:
		return tierBMD
	case ev.keywordLabel != "":
		return tierKeyword
	default:
		return tierFallback
	}
}

// Recorder persists a copy of emitted assessments for the audit log.
type Recorder interface {
	RecordAssessment(ctx context.Context, modality string, a assessment.Assessment) error
}

// Service analyses uploaded medical reports. The tabular model, cache, and
// recorder are all optional.
type Service struct {
	model    inference.TabularModel
	cache    *cache.Cache
	recorder Recorder
	log      zerolog.Logger
}

func NewService(model inference.TabularModel, c *cache.Cache, recorder Recorder, log zerolog.Logger) *Service {
	return &Service{model: model, cache: c, recorder: recorder, log: log}
}

// Analyze extracts clinical evidence from a document and classifies it.
// Every input terminates in a valid assessment; unreadable documents take
// the hash-derived fallback path.
func (s *Service) Analyze(ctx context.Context, content []byte, filename string) assessment.Assessment {
	key := cache.Key("report", filename, content)
	if a, ok := s.cache.Get(ctx, key); ok {
		return a
	}

	a := s.analyze(ctx, content, filename)

	s.cache.Set(ctx, key, a)
	if s.recorder != nil {
		if err := s.recorder.RecordAssessment(ctx, "report", a); err != nil {
			s.log.Warn().Err(err).Msg("failed to record report assessment")
		}
	}
	return a
}

func (s *Service) analyze(ctx context.Context, content []byte, filename string) assessment.Assessment {
	text := textextract.FromDocument(content, filename)
	if strings.TrimSpace(text) == "" {
		fb := inference.DocumentFallback(content, filename)
		return assessment.New(fb.Label, fb.Confidence, fb.TScore, fb.BMD,
			"No readable text found in file -- statistical estimate", nil)
	}

	ev := gatherEvidence(text)
	coverage := ev.fields.coverage()

	switch selectTier(ev) {
	case tierClinicalFields:
		return s.scoreClinicalFields(ctx, ev, coverage)

	case tierTScore:
		label, confidence := labelFromT(*ev.tScore)
		// Strong diagnostic keywords push a borderline band result over.
		if ev.keywordRisk >= 2.5 && label == assessment.Osteopenia {
			label = assessment.Osteoporosis
			confidence = assessment.Round(math.Min(0.88, confidence+0.06), 4)
		}
		bmd := assessment.BMDFromT(*ev.tScore)
		if ev.bmd != nil {
			bmd = *ev.bmd
		}
		src := fmt.Sprintf("T-score from report (%d clinical fields also found)", coverage)
		return assessment.New(label, confidence, *ev.tScore, bmd, src, ev.display)

	case tierBMD:
		derivedT := assessment.TFromBMD(*ev.bmd)
		label, confidence := labelFromT(derivedT)
		src := fmt.Sprintf("BMD from report (%d clinical fields also found)", coverage)
		return assessment.New(label, confidence, derivedT, *ev.bmd, src, ev.display)

	case tierKeyword:
		var t, bmd, confidence float64
		switch ev.keywordLabel {
		case assessment.Osteoporosis:
			t, bmd, confidence = -3.0, 0.59, 0.78
		case assessment.Osteopenia:
			t, bmd, confidence = -1.8, 0.73, 0.74
		default:
			t, bmd, confidence = -0.4, 0.92, 0.75
		}
		return assessment.New(ev.keywordLabel, confidence, t, bmd,
			"Keyword diagnosis only -- no numeric values found", ev.display)

	default:
		fb := inference.DocumentFallback(content, filename)
		return assessment.New(fb.Label, fb.Confidence, fb.TScore, fb.BMD,
			"No recognizable clinical data -- statistical estimate", nil)
	}
}

// scoreClinicalFields feeds the recovered feature vector to the trained
// tabular model when one is loaded, or to the rule-based scorer otherwise.
// A directly stated T-score or BMD always overrides the derived value.
func (s *Service) scoreClinicalFields(ctx context.Context, ev evidence, coverage int) assessment.Assessment {
	features := ev.fields.vector()

	if s.model != nil {
		label, confidence, err := s.modelScore(ctx, features, ev.tScore, coverage)
		if err == nil {
			t := assessment.TScoreWithin(label, confidence)
			if ev.tScore != nil {
				t = *ev.tScore
			}
			bmd := assessment.BMDFromT(t)
			if ev.bmd != nil {
				bmd = *ev.bmd
			}
			src := fmt.Sprintf("Clinical data extracted (%d/14 fields) -- scored with tabular ensemble model", coverage)
			return assessment.New(label, confidence, t, bmd, src, ev.display)
		}
		s.log.Error().Err(err).Msg("tabular model inference failed, using rule-based scorer")
		r := scoring.ScoreFeatures(features)
		t, bmd := r.TScore, r.BMD
		if ev.tScore != nil {
			t = *ev.tScore
		}
		if ev.bmd != nil {
			bmd = *ev.bmd
		}
		src := fmt.Sprintf("Clinical data extracted (%d/14 fields) -- scored with clinical model (model error: %v)", coverage, err)
		return assessment.New(r.Label, r.Confidence, t, bmd, src, ev.display)
	}

	r := scoring.ScoreFeatures(features)
	t, bmd := r.TScore, r.BMD
	if ev.tScore != nil {
		t = *ev.tScore
	}
	if ev.bmd != nil {
		bmd = *ev.bmd
	}
	src := fmt.Sprintf("Clinical data extracted (%d/14 fields) -- scored with clinical model", coverage)
	return assessment.New(r.Label, r.Confidence, t, bmd, src, ev.display)
}

// modelScore runs the binary tabular model over the feature vector padded to
// its 16-column input and reconciles the output against the document's
// T-score evidence.
func (s *Service) modelScore(ctx context.Context, features []float64, tScore *float64, coverage int) (assessment.Label, float64, error) {
	vec := make([]float64, 16)
	copy(vec, features)

	class, err := s.model.Predict(ctx, vec)
	if err != nil {
		return "", 0, err
	}
	proba, err := s.model.PredictProba(ctx, vec)
	if err != nil {
		return "", 0, err
	}
	label, confidence := inference.RefineAndCalibrate(class, proba, tScore, coverage)
	return label, confidence, nil
}

// labelFromT maps a T-score to its clinical band with confidence scaled by
// proximity to the band centre.
func labelFromT(t float64) (assessment.Label, float64) {
	switch {
	case t >= -1.0:
		return assessment.Normal, assessment.Round(math.Min(0.97, 0.82+math.Min(0.15, (t+1.0)*0.05)), 4)
	case t >= -2.5:
		return assessment.Osteopenia, assessment.Round(math.Min(0.95, 0.83+0.12*(1.0-math.Abs(t+1.75)/0.75)), 4)
	default:
		return assessment.Osteoporosis, assessment.Round(math.Min(0.97, 0.80+math.Min(0.17, math.Abs(t+2.5)*0.06)), 4)
	}
}
