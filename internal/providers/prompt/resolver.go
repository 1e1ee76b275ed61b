package prompt

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/SyncraLabs/aura/internal/domain"
	"github.com/SyncraLabs/aura/internal/infra"
)

// Source records which tier produced an instruction.
type Source string

const (
	SourceStored   Source = "stored"
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// InstructionStore is the slice of the service repository the resolver needs.
type InstructionStore interface {
	GetInstruction(ctx context.Context, clinicID, serviceName string) (string, error)
	UpsertInstruction(ctx context.Context, clinicID, serviceName, instruction string) error
}

// Request identifies the service to resolve.
type Request struct {
	ClinicID    string
	ServiceName string
	Sector      domain.Sector
}

// Resolution is always populated; Instruction is never empty.
type Resolution struct {
	Instruction string
	Source      Source
	Service     string
}

// ResolverOptions wires the resolver's collaborators. Every field is optional.
type ResolverOptions struct {
	Store        InstructionStore
	Generator    Generator
	Cache        InstructionCache
	Logger       *infra.Logger
	StoreTimeout time.Duration
	// GenerateTimeout bounds a shared live generation. It runs detached from
	// any single caller so one cancelled request does not fail the others.
	GenerateTimeout time.Duration
}

// Resolver picks an instruction: stored, then live, then deterministic.
type Resolver struct {
	store        InstructionStore
	generator    Generator
	cache        InstructionCache
	logger       *infra.Logger
	storeTimeout time.Duration
	genTimeout   time.Duration
	flight       singleflight.Group
}

func NewResolver(opts ResolverOptions) *Resolver {
	timeout := opts.StoreTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	genTimeout := opts.GenerateTimeout
	if genTimeout <= 0 {
		genTimeout = 30 * time.Second
	}
	return &Resolver{
		store:        opts.Store,
		generator:    opts.Generator,
		cache:        opts.Cache,
		logger:       infra.LoggerOrDiscard(opts.Logger),
		storeTimeout: timeout,
		genTimeout:   genTimeout,
	}
}

// Resolve never fails. Store and generator errors are logged and the next
// tier is tried.
func (r *Resolver) Resolve(ctx context.Context, req Request) Resolution {
	service := NormalizeService(req.ServiceName)
	log := r.logger.With().Str("clinic_id", req.ClinicID).Str("service", service).Logger()

	if instruction, ok := r.stored(ctx, req.ClinicID, service); ok {
		log.Debug().Msg("prompt: using stored instruction")
		return Resolution{Instruction: instruction, Source: SourceStored, Service: service}
	}

	if r.generator != nil {
		instruction, err := r.shared(ctx, req.ClinicID, service, req.Sector)
		if err == nil {
			return Resolution{Instruction: instruction, Source: SourceLive, Service: service}
		}
		log.Warn().Err(err).Msg("prompt: live generation failed, using fallback")
	}

	return Resolution{Instruction: FallbackInstruction(service), Source: SourceFallback, Service: service}
}

// shared collapses concurrent live generations for one (clinic, service).
// The call runs on a context detached from the caller; each caller still
// stops waiting when its own context ends.
func (r *Resolver) shared(ctx context.Context, clinicID, service string, sector domain.Sector) (string, error) {
	ch := r.flight.DoChan(CacheKey(clinicID, service), func() (any, error) {
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.genTimeout)
		defer cancel()
		return r.live(genCtx, clinicID, service, sector)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		instruction, _ := res.Val.(string)
		if instruction == "" {
			return "", errors.New("prompt: generator returned empty instruction")
		}
		return instruction, nil
	}
}

func (r *Resolver) stored(ctx context.Context, clinicID, service string) (string, bool) {
	key := CacheKey(clinicID, service)
	if r.cache != nil {
		if v, ok := r.cache.Get(ctx, key); ok {
			return v, true
		}
	}
	if r.store == nil || clinicID == "" {
		return "", false
	}
	lookupCtx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()
	instruction, err := r.store.GetInstruction(lookupCtx, clinicID, service)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn().Err(err).Str("service", service).Msg("prompt: stored instruction lookup failed")
		}
		return "", false
	}
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return "", false
	}
	if r.cache != nil {
		r.cache.Set(ctx, key, instruction)
	}
	return instruction, true
}

func (r *Resolver) live(ctx context.Context, clinicID, service string, sector domain.Sector) (string, error) {
	instruction, err := r.generator.Generate(ctx, service, sector)
	if err != nil {
		return "", err
	}
	instruction = CleanInstruction(instruction)
	if instruction == "" {
		return "", errors.New("prompt: generator returned empty instruction")
	}
	if r.store != nil && clinicID != "" {
		writeCtx, cancel := context.WithTimeout(ctx, r.storeTimeout)
		defer cancel()
		if err := r.store.UpsertInstruction(writeCtx, clinicID, service, instruction); err != nil {
			r.logger.Warn().Err(err).Str("service", service).Msg("prompt: instruction write-back failed")
		}
	}
	if r.cache != nil {
		r.cache.Set(ctx, CacheKey(clinicID, service), instruction)
	}
	return instruction, nil
}

// Generate resolves an instruction for onboarding without consulting the
// store: live first, then the deterministic fallback.
func (r *Resolver) Generate(ctx context.Context, service string, sector domain.Sector) (string, Source, error) {
	if r.generator == nil {
		return FallbackInstruction(service), SourceFallback, nil
	}
	instruction, err := r.generator.Generate(ctx, service, sector)
	if err == nil {
		if cleaned := CleanInstruction(instruction); cleaned != "" {
			return cleaned, SourceLive, nil
		}
		err = errors.New("prompt: generator returned empty instruction")
	}
	return FallbackInstruction(service), SourceFallback, err
}
