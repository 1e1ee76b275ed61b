package domain

import "context"

// ClinicRepository manages tenants.
type ClinicRepository interface {
	GetByOwner(ctx context.Context, ownerID string) (*Clinic, error)
	UpsertByOwner(ctx context.Context, clinic *Clinic) (*Clinic, error)
}

// ServiceRepository stores resolved instructions and reference images per
// clinic service. Upserts are keyed by (clinic, service name) and idempotent.
type ServiceRepository interface {
	GetInstruction(ctx context.Context, clinicID, serviceName string) (string, error)
	UpsertInstruction(ctx context.Context, clinicID, serviceName, instruction string) error
	FirstReference(ctx context.Context, clinicID, serviceName string) (*ReferenceImage, error)
}

// TransformationRepository persists gallery records.
type TransformationRepository interface {
	Insert(ctx context.Context, t *Transformation) error
	ListByClinic(ctx context.Context, clinicID string, limit int) ([]Transformation, error)
}
