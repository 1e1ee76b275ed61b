// Package transform runs the end-to-end after-photo pipeline for one upload.
package transform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/SyncraLabs/aura/internal/domain"
	"github.com/SyncraLabs/aura/internal/imageprep"
	"github.com/SyncraLabs/aura/internal/infra"
	"github.com/SyncraLabs/aura/internal/persist"
	"github.com/SyncraLabs/aura/internal/providers/imageedit"
	"github.com/SyncraLabs/aura/internal/providers/prompt"
	"github.com/SyncraLabs/aura/internal/storage"
)

const defaultFetchTimeout = 20 * time.Second

// Preprocessor normalizes the upload.
type Preprocessor interface {
	Prepare(data []byte) (*imageprep.Prepared, error)
}

// InstructionResolver picks the edit instruction. It never fails.
type InstructionResolver interface {
	Resolve(ctx context.Context, req prompt.Request) prompt.Resolution
}

// Editor performs the image edit.
type Editor interface {
	Edit(ctx context.Context, req imageedit.EditRequest) (*imageedit.EditResult, error)
}

// ResultPersister stores uploads and generated results.
type ResultPersister interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Persist(ctx context.Context, in persist.Input) (*persist.Outcome, error)
}

// Request is one transformation attempt by an authenticated clinic user.
type Request struct {
	OwnerID     string
	Image       []byte
	Filename    string
	ServiceName string
}

// Result is either a URL or an error, never both.
type Result struct {
	Success  bool        `json:"success"`
	ImageURL string      `json:"imageUrl,omitempty"`
	Durable  bool        `json:"durable,omitempty"`
	Kind     domain.Kind `json:"kind,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Ok builds a successful result.
func Ok(url string, durable bool) Result {
	return Result{Success: true, ImageURL: url, Durable: durable}
}

// Fail builds a failed result from any error.
func Fail(err error) Result {
	return Result{Kind: domain.KindOf(err), Error: domain.MessageOf(err)}
}

// Options wires the pipeline.
type Options struct {
	Clinics      domain.ClinicRepository
	Services     domain.ServiceRepository
	Preprocessor Preprocessor
	Resolver     InstructionResolver
	Editor       Editor
	Persister    ResultPersister
	Fetcher      storage.Fetcher
	FetchTimeout time.Duration
	Logger       *infra.Logger
	Now          func() time.Time
}

// Service orchestrates a transformation.
type Service struct {
	clinics      domain.ClinicRepository
	services     domain.ServiceRepository
	prep         Preprocessor
	resolver     InstructionResolver
	editor       Editor
	persister    ResultPersister
	fetcher      storage.Fetcher
	fetchTimeout time.Duration
	logger       *infra.Logger
	now          func() time.Time
}

func NewService(opts Options) *Service {
	s := &Service{
		clinics:      opts.Clinics,
		services:     opts.Services,
		prep:         opts.Preprocessor,
		resolver:     opts.Resolver,
		editor:       opts.Editor,
		persister:    opts.Persister,
		fetcher:      opts.Fetcher,
		fetchTimeout: opts.FetchTimeout,
		logger:       infra.LoggerOrDiscard(opts.Logger),
		now:          opts.Now,
	}
	if s.prep == nil {
		s.prep = imageprep.New(imageprep.Options{})
	}
	if s.fetchTimeout <= 0 {
		s.fetchTimeout = defaultFetchTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Transform runs the pipeline. Failures are reported in the Result.
func (s *Service) Transform(ctx context.Context, req Request) Result {
	start := time.Now()
	res, err := s.run(ctx, req)
	log := s.logger.With().
		Str("owner_id", req.OwnerID).
		Str("service", req.ServiceName).
		Dur("took", time.Since(start)).
		Logger()
	if err != nil {
		result := Fail(err)
		evt := log.Warn()
		if result.Kind == domain.KindStorageError || result.Kind == domain.KindProviderError {
			evt = log.Error()
		}
		evt.Err(err).Str("kind", string(result.Kind)).Msg("transform: failed")
		return result
	}
	log.Info().Bool("durable", res.Durable).Msg("transform: completed")
	return res
}

func (s *Service) run(ctx context.Context, req Request) (Result, error) {
	ownerID := strings.TrimSpace(req.OwnerID)
	if ownerID == "" {
		return Result{}, domain.NewError(domain.KindUnauthorized, "Sign in to create transformations.", domain.ErrUnauthorized)
	}

	clinic, err := s.clinics.GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Result{}, domain.NewError(domain.KindUnauthorized, "No clinic profile is linked to this account.", domain.ErrUnauthorized)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, cancelled(ctxErr)
		}
		return Result{}, domain.NewError(domain.KindStorageError, "The clinic profile could not be loaded.", fmt.Errorf("%w: %w", domain.ErrStorageFailure, err))
	}

	prepared, err := s.prep.Prepare(req.Image)
	if err != nil {
		return Result{}, err
	}

	beforeURL, err := s.uploadOriginal(ctx, ownerID, req.Image)
	if err != nil {
		return Result{}, err
	}

	if err := ctx.Err(); err != nil {
		return Result{}, cancelled(err)
	}
	resolution := s.resolver.Resolve(ctx, prompt.Request{
		ClinicID:    clinic.ID,
		ServiceName: req.ServiceName,
		Sector:      clinic.Sector,
	})

	edit := imageedit.EditRequest{
		Image: imageedit.Image{
			Data:        prepared.Data,
			ContentType: prepared.ContentType,
		},
		Width:       prepared.Width,
		Height:      prepared.Height,
		Instruction: resolution.Instruction,
		Reference:   s.reference(ctx, clinic.ID, req.ServiceName),
	}
	if err := ctx.Err(); err != nil {
		return Result{}, cancelled(err)
	}
	generated, err := s.editor.Edit(ctx, edit)
	if err != nil {
		return Result{}, err
	}

	outcome, err := s.persister.Persist(ctx, persist.Input{
		OwnerID:     ownerID,
		ClinicID:    clinic.ID,
		BeforeURL:   beforeURL,
		Data:        generated.Data,
		ContentType: generated.ContentType,
		ProviderURL: generated.URL,
	})
	if err != nil {
		return Result{}, err
	}
	return Ok(outcome.URL, outcome.Durable()), nil
}

func (s *Service) uploadOriginal(ctx context.Context, ownerID string, data []byte) (string, error) {
	contentType := http.DetectContentType(data)
	key := fmt.Sprintf("%s/%d.%s", ownerID, s.now().UnixMilli(), storage.ExtensionForMIME(contentType))
	url, err := s.persister.Upload(ctx, key, data, contentType)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", cancelled(ctxErr)
		}
		return "", domain.NewError(domain.KindStorageError, "The original photo could not be saved. Please try again.", fmt.Errorf("%w: %w", domain.ErrStorageFailure, err))
	}
	return url, nil
}

// reference returns the service's exemplar image, or nil when there is none
// or it cannot be loaded.
func (s *Service) reference(ctx context.Context, clinicID, serviceName string) *imageedit.Image {
	if s.services == nil || s.fetcher == nil {
		return nil
	}
	log := s.logger.With().Str("clinic_id", clinicID).Str("service", serviceName).Logger()
	ref, err := s.services.FirstReference(ctx, clinicID, strings.TrimSpace(serviceName))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Msg("transform: reference lookup failed")
		}
		return nil
	}
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	data, contentType, err := s.fetcher.Fetch(fetchCtx, ref.ImageURL)
	if err != nil {
		log.Warn().Err(err).Str("reference_url", ref.ImageURL).Msg("transform: reference fetch failed")
		return nil
	}
	return &imageedit.Image{Data: data, ContentType: contentType}
}

func cancelled(err error) error {
	return domain.NewError(domain.KindProviderError, "The request was cancelled.", err)
}
