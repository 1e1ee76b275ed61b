// Package supabaserepo implements the domain repositories over Supabase's
// PostgREST API for deployments that do not expose a direct database URL.
package supabaserepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"

	"github.com/SyncraLabs/aura/internal/domain"
)

const (
	tableClinics    = "clinics"
	tableServices   = "clinic_services"
	tableReferences = "service_references"
	tableExamples   = "examples"
)

// Store satisfies ClinicRepository, ServiceRepository and TransformationRepository.
type Store struct {
	client *supabase.Client
}

func NewStore(client *supabase.Client) *Store {
	return &Store{client: client}
}

type clinicRow struct {
	ID                  string     `json:"id,omitempty"`
	OwnerID             string     `json:"owner_id"`
	Name                string     `json:"name"`
	Type                string     `json:"type"`
	Description         *string    `json:"description"`
	Services            []string   `json:"services"`
	BusinessDocURL      *string    `json:"business_doc_url"`
	OnboardingCompleted bool       `json:"onboarding_completed"`
	CreatedAt           *time.Time `json:"created_at,omitempty"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty"`
}

type serviceRow struct {
	ClinicID string  `json:"clinic_id"`
	Name     string  `json:"name"`
	AIPrompt *string `json:"ai_prompt"`
}

type referenceRow struct {
	ID          string  `json:"id"`
	ClinicID    string  `json:"clinic_id"`
	ServiceName string  `json:"service_name"`
	ImageURL    string  `json:"image_url"`
	Description *string `json:"description"`
}

type exampleRow struct {
	ID             string     `json:"id"`
	ClinicID       string     `json:"clinic_id"`
	BeforeImageURL string     `json:"before_image_url"`
	AfterImageURL  string     `json:"after_image_url"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
}

// GetByOwner returns the owner's clinic or domain.ErrNotFound.
func (s *Store) GetByOwner(ctx context.Context, ownerID string) (*domain.Clinic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, _, err := s.client.From(tableClinics).
		Select("*", "", false).
		Eq("owner_id", ownerID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("supabase: select clinic: %w", err)
	}
	var rows []clinicRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("supabase: decode clinic: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return rows[0].toDomain(), nil
}

// UpsertByOwner updates the existing clinic or inserts a new one.
func (s *Store) UpsertByOwner(ctx context.Context, clinic *domain.Clinic) (*domain.Clinic, error) {
	if clinic == nil || strings.TrimSpace(clinic.OwnerID) == "" {
		return nil, fmt.Errorf("supabase: upsert clinic: owner is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := fromClinic(clinic)
	existing, err := s.GetByOwner(ctx, clinic.OwnerID)
	switch {
	case err == nil:
		row.ID = existing.ID
		data, _, err := s.client.From(tableClinics).
			Update(row, "representation", "").
			Eq("id", existing.ID).
			Execute()
		if err != nil {
			return nil, fmt.Errorf("supabase: update clinic: %w", err)
		}
		return decodeFirstClinic(data, row)
	case errors.Is(err, domain.ErrNotFound):
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		data, _, err := s.client.From(tableClinics).
			Insert(row, false, "", "representation", "").
			Execute()
		if err != nil {
			return nil, fmt.Errorf("supabase: insert clinic: %w", err)
		}
		return decodeFirstClinic(data, row)
	default:
		return nil, err
	}
}

// GetInstruction returns the stored ai_prompt or domain.ErrNotFound.
func (s *Store) GetInstruction(ctx context.Context, clinicID, serviceName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, _, err := s.client.From(tableServices).
		Select("clinic_id,name,ai_prompt", "", false).
		Eq("clinic_id", clinicID).
		Eq("name", serviceName).
		Execute()
	if err != nil {
		return "", fmt.Errorf("supabase: select service: %w", err)
	}
	var rows []serviceRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return "", fmt.Errorf("supabase: decode service: %w", err)
	}
	for _, row := range rows {
		if row.AIPrompt != nil && strings.TrimSpace(*row.AIPrompt) != "" {
			return *row.AIPrompt, nil
		}
	}
	return "", domain.ErrNotFound
}

// UpsertInstruction relies on the unique (clinic_id, name) constraint.
func (s *Store) UpsertInstruction(ctx context.Context, clinicID, serviceName, instruction string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row := serviceRow{ClinicID: clinicID, Name: serviceName, AIPrompt: &instruction}
	if _, _, err := s.client.From(tableServices).
		Insert(row, true, "clinic_id,name", "minimal", "").
		Execute(); err != nil {
		return fmt.Errorf("supabase: upsert service: %w", err)
	}
	return nil
}

// FirstReference returns the first reference image for the service.
func (s *Store) FirstReference(ctx context.Context, clinicID, serviceName string) (*domain.ReferenceImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, _, err := s.client.From(tableReferences).
		Select("id,clinic_id,service_name,image_url,description", "", false).
		Eq("clinic_id", clinicID).
		Eq("service_name", serviceName).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("supabase: select reference: %w", err)
	}
	var rows []referenceRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("supabase: decode reference: %w", err)
	}
	if len(rows) == 0 || strings.TrimSpace(rows[0].ImageURL) == "" {
		return nil, domain.ErrNotFound
	}
	r := rows[0]
	return &domain.ReferenceImage{
		ID:          r.ID,
		ClinicID:    r.ClinicID,
		ServiceName: r.ServiceName,
		ImageURL:    r.ImageURL,
		Description: deref(r.Description),
	}, nil
}

// Insert writes a transformation into the examples table.
func (s *Store) Insert(ctx context.Context, t *domain.Transformation) error {
	if t == nil {
		return fmt.Errorf("supabase: insert transformation: record is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	row := exampleRow{ID: t.ID, ClinicID: t.ClinicID, BeforeImageURL: t.BeforeURL, AfterImageURL: t.AfterURL}
	data, _, err := s.client.From(tableExamples).
		Insert(row, false, "", "representation", "").
		Execute()
	if err != nil {
		return fmt.Errorf("supabase: insert transformation: %w", err)
	}
	var rows []exampleRow
	if err := json.Unmarshal(data, &rows); err == nil && len(rows) > 0 && rows[0].CreatedAt != nil {
		t.CreatedAt = *rows[0].CreatedAt
	} else {
		t.CreatedAt = time.Now().UTC()
	}
	return nil
}

// ListByClinic returns the newest records first.
func (s *Store) ListByClinic(ctx context.Context, clinicID string, limit int) ([]domain.Transformation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, _, err := s.client.From(tableExamples).
		Select("id,clinic_id,before_image_url,after_image_url,created_at", "", false).
		Eq("clinic_id", clinicID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("supabase: list transformations: %w", err)
	}
	var rows []exampleRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("supabase: decode transformations: %w", err)
	}
	sort.SliceStable(rows, func(i, j int) bool { return derefTime(rows[i].CreatedAt).After(derefTime(rows[j].CreatedAt)) })
	if limit <= 0 || limit > 100 {
		limit = 24
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]domain.Transformation, 0, len(rows))
	for _, r := range rows {
		items = append(items, domain.Transformation{
			ID:        r.ID,
			ClinicID:  r.ClinicID,
			BeforeURL: r.BeforeImageURL,
			AfterURL:  r.AfterImageURL,
			CreatedAt: derefTime(r.CreatedAt),
		})
	}
	return items, nil
}

func (r clinicRow) toDomain() *domain.Clinic {
	return &domain.Clinic{
		ID:                  r.ID,
		OwnerID:             r.OwnerID,
		Name:                r.Name,
		Sector:              domain.NormalizeSector(r.Type),
		Description:         deref(r.Description),
		Services:            r.Services,
		BusinessDocURL:      deref(r.BusinessDocURL),
		OnboardingCompleted: r.OnboardingCompleted,
		CreatedAt:           derefTime(r.CreatedAt),
		UpdatedAt:           derefTime(r.UpdatedAt),
	}
}

func fromClinic(c *domain.Clinic) clinicRow {
	services := c.Services
	if services == nil {
		services = []string{}
	}
	return clinicRow{
		ID:                  c.ID,
		OwnerID:             c.OwnerID,
		Name:                c.Name,
		Type:                string(c.Sector),
		Description:         optional(c.Description),
		Services:            services,
		BusinessDocURL:      optional(c.BusinessDocURL),
		OnboardingCompleted: true,
	}
}

func decodeFirstClinic(data []byte, sent clinicRow) (*domain.Clinic, error) {
	var rows []clinicRow
	if err := json.Unmarshal(data, &rows); err == nil && len(rows) > 0 {
		return rows[0].toDomain(), nil
	}
	return sent.toDomain(), nil
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var (
	_ domain.ClinicRepository         = (*Store)(nil)
	_ domain.ServiceRepository        = (*Store)(nil)
	_ domain.TransformationRepository = (*Store)(nil)
)
