package domain

import (
	"strings"
	"time"
)

// Sector tags the clinic's business category. It disambiguates service vocabulary.
type Sector string

const (
	SectorDental    Sector = "dental"
	SectorHair      Sector = "hair"
	SectorAesthetic Sector = "aesthetic"
	SectorOther     Sector = "other"
	SectorGeneral   Sector = "general"
)

// NormalizeSector sanitizes free-form input into a known sector. Unknown
// values are kept lowercased so a newer sector still reaches the prompt.
func NormalizeSector(s string) Sector {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return SectorGeneral
	}
	return Sector(v)
}

// Clinic is the tenant that owns services and transformations.
type Clinic struct {
	ID                  string
	OwnerID             string
	Name                string
	Sector              Sector
	Description         string
	Services            []string
	BusinessDocURL      string
	OnboardingCompleted bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ServiceDefinition is a clinic service with its stored edit instruction.
type ServiceDefinition struct {
	ClinicID    string
	Name        string
	Instruction string
	UpdatedAt   time.Time
}

// ReferenceImage is an exemplar "after" photo for a service.
type ReferenceImage struct {
	ID          string
	ClinicID    string
	ServiceName string
	ImageURL    string
	Description string
}
