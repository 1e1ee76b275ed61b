package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/SyncraLabs/aura/internal/domain"
	"github.com/SyncraLabs/aura/internal/infra"
	"github.com/SyncraLabs/aura/internal/sqlinline"
)

// ClinicRepositoryPG implements domain.ClinicRepository using PostgreSQL.
type ClinicRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewClinicRepository constructs a clinic repository over a marker-aware executor.
func NewClinicRepository(sql infra.SQLExecutor) *ClinicRepositoryPG {
	return &ClinicRepositoryPG{sql: sql}
}

// GetByOwner returns the clinic owned by ownerID or domain.ErrNotFound.
func (r *ClinicRepositoryPG) GetByOwner(ctx context.Context, ownerID string) (*domain.Clinic, error) {
	var (
		c      domain.Clinic
		sector string
	)
	err := r.sql.QueryRow(ctx, sqlinline.QSelectClinicByOwner, ownerID).Scan(
		&c.ID, &c.OwnerID, &c.Name, &sector, &c.Description, &c.Services,
		&c.BusinessDocURL, &c.OnboardingCompleted, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select clinic: %w", err)
	}
	c.Sector = domain.NormalizeSector(sector)
	return &c, nil
}

// UpsertByOwner inserts or updates the owner's clinic and marks onboarding complete.
func (r *ClinicRepositoryPG) UpsertByOwner(ctx context.Context, clinic *domain.Clinic) (*domain.Clinic, error) {
	if clinic == nil || strings.TrimSpace(clinic.OwnerID) == "" {
		return nil, fmt.Errorf("upsert clinic: owner is required")
	}
	out := *clinic
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	services := out.Services
	if services == nil {
		services = []string{}
	}
	err := r.sql.QueryRow(ctx, sqlinline.QUpsertClinicByOwner,
		out.ID, out.OwnerID, out.Name, string(out.Sector), out.Description, services, out.BusinessDocURL,
	).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert clinic: %w", err)
	}
	out.OnboardingCompleted = true
	return &out, nil
}

var _ domain.ClinicRepository = (*ClinicRepositoryPG)(nil)
