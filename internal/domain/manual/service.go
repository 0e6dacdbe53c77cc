// Package manual implements the clinical-feature-vector prediction path.
package manual

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/osteocare/osteocare/internal/domain/assessment"
	"github.com/osteocare/osteocare/internal/platform/inference"
	"github.com/osteocare/osteocare/internal/platform/scoring"
)

// modelColumns is the input width of the trained tabular ensemble.
const modelColumns = 16

// Recorder persists a copy of emitted assessments for the audit log.
type Recorder interface {
	RecordAssessment(ctx context.Context, modality string, a assessment.Assessment) error
}

// Service scores manually entered clinical feature vectors. The tabular model
// and recorder are optional.
type Service struct {
	model    inference.TabularModel
	recorder Recorder
	log      zerolog.Logger
}

func NewService(model inference.TabularModel, recorder Recorder, log zerolog.Logger) *Service {
	return &Service{model: model, recorder: recorder, log: log}
}

// Predict classifies a clinical feature vector, preferring the trained model
// and falling back to the rule-based scorer when it is unavailable or fails.
func (s *Service) Predict(ctx context.Context, features []float64) assessment.Assessment {
	a := s.predict(ctx, features)
	if s.recorder != nil {
		if err := s.recorder.RecordAssessment(ctx, "manual", a); err != nil {
			s.log.Warn().Err(err).Msg("failed to record manual assessment")
		}
	}
	return a
}

func (s *Service) predict(ctx context.Context, features []float64) assessment.Assessment {
	if s.model != nil {
		label, confidence, err := s.modelScore(ctx, features)
		if err == nil {
			t := assessment.TScoreWithin(label, confidence)
			return assessment.New(label, confidence, t, assessment.BMDFromT(t),
				"Manual entry -- scored with tabular ensemble model", nil)
		}
		s.log.Error().Err(err).Msg("tabular model inference failed, using rule-based scorer")
		r := scoring.ScoreFeatures(features)
		src := fmt.Sprintf("Manual entry -- scored with clinical model (model error: %v)", err)
		return assessment.New(r.Label, r.Confidence, r.TScore, r.BMD, src, nil)
	}

	r := scoring.ScoreFeatures(features)
	return assessment.New(r.Label, r.Confidence, r.TScore, r.BMD,
		"Manual entry -- scored with clinical model", nil)
}

func (s *Service) modelScore(ctx context.Context, features []float64) (assessment.Label, float64, error) {
	vec := make([]float64, modelColumns)
	copy(vec, features)

	class, err := s.model.Predict(ctx, vec)
	if err != nil {
		return "", 0, err
	}
	proba, err := s.model.PredictProba(ctx, vec)
	if err != nil {
		return "", 0, err
	}
	// Direct entry has no document evidence: full coverage, no T-score.
	label, confidence := inference.RefineAndCalibrate(class, proba, nil, scoring.FeatureCount)
	return label, confidence, nil
}
