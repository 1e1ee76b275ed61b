package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/SyncraLabs/aura/internal/domain"
	"github.com/SyncraLabs/aura/internal/infra"
	"github.com/SyncraLabs/aura/internal/sqlinline"
)

// TransformationRepositoryPG implements domain.TransformationRepository using PostgreSQL.
type TransformationRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewTransformationRepository(sql infra.SQLExecutor) *TransformationRepositoryPG {
	return &TransformationRepositoryPG{sql: sql}
}

// Insert writes the record, assigning an ID when absent.
func (r *TransformationRepositoryPG) Insert(ctx context.Context, t *domain.Transformation) error {
	if t == nil {
		return fmt.Errorf("insert transformation: record is required")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := r.sql.QueryRow(ctx, sqlinline.QInsertTransformation, t.ID, t.ClinicID, t.BeforeURL, t.AfterURL).Scan(&t.CreatedAt); err != nil {
		return fmt.Errorf("insert transformation: %w", err)
	}
	return nil
}

// ListByClinic returns the newest records first.
func (r *TransformationRepositoryPG) ListByClinic(ctx context.Context, clinicID string, limit int) ([]domain.Transformation, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListTransformationsByClinic, clinicID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list transformations: %w", err)
	}
	defer rows.Close()

	var items []domain.Transformation
	for rows.Next() {
		var t domain.Transformation
		if err := rows.Scan(&t.ID, &t.ClinicID, &t.BeforeURL, &t.AfterURL, &t.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 24
	case limit > 100:
		return 100
	default:
		return limit
	}
}

var _ domain.TransformationRepository = (*TransformationRepositoryPG)(nil)
