package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/osteocare/osteocare/internal/domain/assessment"
)

// AssessmentRecord is one persisted prediction, kept for the audit trail.
// Suggestions and medications are derivable from the prediction label, so
// only the computed values are stored.
type AssessmentRecord struct {
	ID             uuid.UUID `json:"id"`
	Modality       string    `json:"modality"`
	Prediction     string    `json:"prediction"`
	Confidence     float64   `json:"confidence"`
	TScore         float64   `json:"t_score"`
	BMD            float64   `json:"bmd"`
	EvidenceSource string    `json:"evidence_source,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewRecord(modality string, a assessment.Assessment) *AssessmentRecord {
	return &AssessmentRecord{
		Modality:       modality,
		Prediction:     string(a.Prediction),
		Confidence:     a.Confidence,
		TScore:         a.TScore,
		BMD:            a.BMD,
		EvidenceSource: a.EvidenceSource,
	}
}
