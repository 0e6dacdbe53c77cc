package history

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

// EnsureSchema creates the audit table when it does not exist yet. The schema
// is small enough that a migration tool would be overkill.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS assessment_record (
			id              UUID PRIMARY KEY,
			modality        TEXT NOT NULL,
			prediction      TEXT NOT NULL,
			confidence      DOUBLE PRECISION NOT NULL,
			t_score         DOUBLE PRECISION NOT NULL,
			bmd             DOUBLE PRECISION NOT NULL,
			evidence_source TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

const recordCols = `id, modality, prediction, confidence, t_score, bmd, evidence_source, created_at`

func scanRecord(row pgx.Row) (*AssessmentRecord, error) {
	var rec AssessmentRecord
	err := row.Scan(&rec.ID, &rec.Modality, &rec.Prediction, &rec.Confidence,
		&rec.TScore, &rec.BMD, &rec.EvidenceSource, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repoPG) Create(ctx context.Context, rec *AssessmentRecord) error {
	rec.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO assessment_record (id, modality, prediction, confidence, t_score, bmd, evidence_source)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rec.ID, rec.Modality, rec.Prediction, rec.Confidence, rec.TScore, rec.BMD, rec.EvidenceSource)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*AssessmentRecord, error) {
	return scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordCols+` FROM assessment_record WHERE id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*AssessmentRecord, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM assessment_record`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+recordCols+` FROM assessment_record ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AssessmentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}
