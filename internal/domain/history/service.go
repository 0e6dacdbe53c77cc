// Package history persists a copy of every emitted assessment for audit.
// The prediction core itself stays stateless; recording happens after the
// response value is computed and never influences it.
package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/osteocare/osteocare/internal/domain/assessment"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RecordAssessment satisfies the Recorder interface each modality service
// accepts.
func (s *Service) RecordAssessment(ctx context.Context, modality string, a assessment.Assessment) error {
	if modality == "" {
		return fmt.Errorf("modality is required")
	}
	return s.repo.Create(ctx, NewRecord(modality, a))
}

func (s *Service) GetAssessment(ctx context.Context, id uuid.UUID) (*AssessmentRecord, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListAssessments(ctx context.Context, limit, offset int) ([]*AssessmentRecord, int, error) {
	return s.repo.List(ctx, limit, offset)
}
