// Package onboarding saves a clinic profile and pre-resolves an edit
// instruction for every service it offers.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/time/rate"

	"github.com/SyncraLabs/aura/internal/domain"
	"github.com/SyncraLabs/aura/internal/infra"
	"github.com/SyncraLabs/aura/internal/providers/prompt"
)

const (
	defaultConcurrency = 4
	defaultRPS         = 5
)

// ErrNoName is returned when the profile has no clinic name.
var ErrNoName = errors.New("onboarding: clinic name is required")

// InstructionGenerator produces an instruction with a deterministic fallback.
// A non-nil error still comes with a usable fallback instruction.
type InstructionGenerator interface {
	Generate(ctx context.Context, service string, sector domain.Sector) (string, prompt.Source, error)
}

// Profile is the onboarding form.
type Profile struct {
	Name           string   `json:"name"`
	Sector         string   `json:"type"`
	Description    string   `json:"description"`
	Services       []string `json:"services"`
	BusinessDocURL string   `json:"businessDocUrl"`
}

// ServiceResult reports what happened to one service.
type ServiceResult struct {
	Service     string        `json:"service"`
	Instruction string        `json:"instruction,omitempty"`
	Source      prompt.Source `json:"source,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Summary is returned once every service has been attempted.
type Summary struct {
	ClinicID string          `json:"clinicId"`
	Services []ServiceResult `json:"services"`
	Failed   int             `json:"failed"`
}

// Options wires the service.
type Options struct {
	Clinics   domain.ClinicRepository
	Services  domain.ServiceRepository
	Generator InstructionGenerator
	// Cache, when set, is refreshed after each upsert so transforms stop
	// serving the previous instruction.
	Cache       prompt.InstructionCache
	Concurrency int
	// RPS caps calls to the text provider across all services.
	RPS    float64
	Logger *infra.Logger
}

// Service saves profiles.
type Service struct {
	clinics     domain.ClinicRepository
	services    domain.ServiceRepository
	generator   InstructionGenerator
	cache       prompt.InstructionCache
	concurrency int
	limiter     *rate.Limiter
	logger      *infra.Logger
}

func NewService(opts Options) *Service {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	rps := opts.RPS
	if rps <= 0 {
		rps = defaultRPS
	}
	return &Service{
		clinics:     opts.Clinics,
		services:    opts.Services,
		generator:   opts.Generator,
		cache:       opts.Cache,
		concurrency: concurrency,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		logger:      infra.LoggerOrDiscard(opts.Logger),
	}
}

// SaveProfile upserts the clinic and then resolves every service
// concurrently. A failing service is reported in the summary and never
// stops the others.
func (s *Service) SaveProfile(ctx context.Context, ownerID string, profile Profile) (*Summary, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, domain.NewError(domain.KindUnauthorized, "Sign in to save your clinic profile.", domain.ErrUnauthorized)
	}
	name := strings.TrimSpace(profile.Name)
	if name == "" {
		return nil, ErrNoName
	}
	services := uniqueServices(profile.Services)
	sector := domain.NormalizeSector(profile.Sector)

	clinic, err := s.clinics.UpsertByOwner(ctx, &domain.Clinic{
		OwnerID:             ownerID,
		Name:                name,
		Sector:              sector,
		Description:         strings.TrimSpace(profile.Description),
		Services:            services,
		BusinessDocURL:      strings.TrimSpace(profile.BusinessDocURL),
		OnboardingCompleted: true,
	})
	if err != nil {
		return nil, domain.NewError(domain.KindStorageError, "The clinic profile could not be saved.", fmt.Errorf("%w: %w", domain.ErrStorageFailure, err))
	}

	results := make([]ServiceResult, len(services))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, service := range services {
		g.Go(func() error {
			results[i] = s.resolveOne(ctx, clinic.ID, service, sector)
			return nil
		})
	}
	_ = g.Wait()

	summary := &Summary{ClinicID: clinic.ID, Services: results}
	for _, r := range results {
		if r.Error != "" {
			summary.Failed++
		}
	}
	s.logger.Info().
		Str("clinic_id", clinic.ID).
		Int("services", len(results)).
		Int("failed", summary.Failed).
		Msg("onboarding: profile saved")
	return summary, nil
}

func (s *Service) resolveOne(ctx context.Context, clinicID, raw string, sector domain.Sector) ServiceResult {
	service := prompt.NormalizeService(raw)
	result := ServiceResult{Service: service}
	log := s.logger.With().Str("clinic_id", clinicID).Str("service", service).Logger()

	instruction, source := prompt.FallbackInstruction(service), prompt.SourceFallback
	if s.generator != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			log.Warn().Err(err).Msg("onboarding: rate limiter aborted, using fallback")
		} else {
			var genErr error
			instruction, source, genErr = s.generator.Generate(ctx, service, sector)
			if genErr != nil {
				log.Warn().Err(genErr).Msg("onboarding: live generation failed, using fallback")
			}
		}
	}
	result.Instruction = instruction
	result.Source = source

	if err := s.services.UpsertInstruction(ctx, clinicID, service, instruction); err != nil {
		log.Error().Err(err).Msg("onboarding: instruction upsert failed")
		result.Error = "The instruction for this service could not be saved."
		return result
	}
	if s.cache != nil {
		s.cache.Set(ctx, prompt.CacheKey(clinicID, service), instruction)
	}
	return result
}

// uniqueServices trims names and drops empty and case-insensitive duplicates,
// keeping the first spelling.
func uniqueServices(in []string) []string {
	fold := cases.Fold()
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := fold.String(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
