package repo

import (
	"context"
	"fmt"

	"github.com/SyncraLabs/aura/internal/domain"
	"github.com/SyncraLabs/aura/internal/infra"
	"github.com/SyncraLabs/aura/internal/sqlinline"
)

// ServiceRepositoryPG stores per-service instructions and references in PostgreSQL.
type ServiceRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewServiceRepository(sql infra.SQLExecutor) *ServiceRepositoryPG {
	return &ServiceRepositoryPG{sql: sql}
}

// GetInstruction returns the stored instruction. A missing row or an empty
// instruction is reported as domain.ErrNotFound.
func (r *ServiceRepositoryPG) GetInstruction(ctx context.Context, clinicID, serviceName string) (string, error) {
	var instruction string
	err := r.sql.QueryRow(ctx, sqlinline.QSelectServiceInstruction, clinicID, serviceName).Scan(&instruction)
	if err != nil {
		if infra.IsNoRows(err) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("select service instruction: %w", err)
	}
	if instruction == "" {
		return "", domain.ErrNotFound
	}
	return instruction, nil
}

// UpsertInstruction writes the instruction keyed by (clinic, name).
func (r *ServiceRepositoryPG) UpsertInstruction(ctx context.Context, clinicID, serviceName, instruction string) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QUpsertServiceInstruction, clinicID, serviceName, instruction); err != nil {
		return fmt.Errorf("upsert service instruction: %w", err)
	}
	return nil
}

// FirstReference returns the oldest reference image for the service.
func (r *ServiceRepositoryPG) FirstReference(ctx context.Context, clinicID, serviceName string) (*domain.ReferenceImage, error) {
	var ref domain.ReferenceImage
	err := r.sql.QueryRow(ctx, sqlinline.QSelectFirstServiceReference, clinicID, serviceName).Scan(
		&ref.ID, &ref.ClinicID, &ref.ServiceName, &ref.ImageURL, &ref.Description,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select service reference: %w", err)
	}
	return &ref, nil
}

var _ domain.ServiceRepository = (*ServiceRepositoryPG)(nil)
