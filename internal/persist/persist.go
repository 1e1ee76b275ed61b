// Package persist turns a generated image into a durable URL in the object
// store and records the before/after pair.
package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SyncraLabs/aura/internal/domain"
	"github.com/SyncraLabs/aura/internal/infra"
	"github.com/SyncraLabs/aura/internal/storage"
)

const (
	defaultUploadTimeout = 30 * time.Second
	defaultFetchTimeout  = 20 * time.Second

	msgUploadFailed = "The generated image could not be saved. Please try again."
	msgRecordFailed = "The transformation could not be recorded. Please try again."
)

// URLKind tells durable storage URLs apart from provider-hosted ones.
type URLKind int

const (
	// StableURL points into our object store.
	StableURL URLKind = iota
	// DegradedURL is the provider's own URL, which may expire.
	DegradedURL
)

func (k URLKind) String() string {
	if k == DegradedURL {
		return "degraded"
	}
	return "stable"
}

// Input is the edit output plus the context needed to file it.
type Input struct {
	OwnerID   string
	ClinicID  string
	BeforeURL string

	// Exactly one of Data or ProviderURL is set.
	Data        []byte
	ContentType string
	ProviderURL string
}

// Outcome is the persisted result. Record is nil for degraded outcomes.
type Outcome struct {
	Kind     URLKind
	URL      string
	Record   *domain.Transformation
	FetchErr error
}

// Durable reports whether URL lives in our object store.
func (o *Outcome) Durable() bool {
	return o != nil && o.Kind == StableURL
}

// Options wires the persister.
type Options struct {
	Store         storage.ObjectStore
	Fetcher       storage.Fetcher
	Records       domain.TransformationRepository
	Logger        *infra.Logger
	UploadTimeout time.Duration
	FetchTimeout  time.Duration
	Now           func() time.Time
}

// Persister stores results.
type Persister struct {
	store         storage.ObjectStore
	fetcher       storage.Fetcher
	records       domain.TransformationRepository
	logger        *infra.Logger
	uploadTimeout time.Duration
	fetchTimeout  time.Duration
	now           func() time.Time
}

// New builds a Persister.
func New(opts Options) *Persister {
	p := &Persister{
		store:         opts.Store,
		fetcher:       opts.Fetcher,
		records:       opts.Records,
		logger:        infra.LoggerOrDiscard(opts.Logger),
		uploadTimeout: opts.UploadTimeout,
		fetchTimeout:  opts.FetchTimeout,
		now:           opts.Now,
	}
	if p.uploadTimeout <= 0 {
		p.uploadTimeout = defaultUploadTimeout
	}
	if p.fetchTimeout <= 0 {
		p.fetchTimeout = defaultFetchTimeout
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// ResultKey is the object key for a generated image.
func ResultKey(ownerID string, at time.Time, contentType string) string {
	return fmt.Sprintf("%s/result_final_%d.%s", ownerID, at.UnixMilli(), storage.ExtensionForMIME(contentType))
}

// Persist uploads the result and, once the URL is stable, inserts exactly one
// Transformation. A provider URL that cannot be fetched yields a degraded
// outcome and no record.
func (p *Persister) Persist(ctx context.Context, in Input) (*Outcome, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return nil, domain.NewError(domain.KindUnauthorized, "Sign in to save transformations.", domain.ErrUnauthorized)
	}

	data, contentType := in.Data, in.ContentType
	if len(data) == 0 {
		providerURL := strings.TrimSpace(in.ProviderURL)
		if providerURL == "" {
			return nil, domain.NewError(domain.KindProviderError, "The image provider returned no image. Please try again.", domain.ErrNoOutput)
		}
		fetched, fetchedType, err := p.fetch(ctx, providerURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, cancelled(ctxErr)
			}
			p.logger.Warn().Err(err).Str("owner_id", in.OwnerID).Msg("persist: provider url not fetched, returning degraded url")
			return &Outcome{Kind: DegradedURL, URL: providerURL, FetchErr: err}, nil
		}
		data, contentType = fetched, fetchedType
	}
	if contentType == "" {
		contentType = "image/png"
	}

	url, err := p.upload(ctx, ResultKey(in.OwnerID, p.now(), contentType), data, contentType)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, cancelled(ctxErr)
		}
		return nil, domain.NewError(domain.KindStorageError, msgUploadFailed, fmt.Errorf("%w: %w", domain.ErrStorageFailure, err))
	}

	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}
	record := &domain.Transformation{
		ClinicID:  in.ClinicID,
		BeforeURL: in.BeforeURL,
		AfterURL:  url,
	}
	if err := p.records.Insert(ctx, record); err != nil {
		return nil, domain.NewError(domain.KindStorageError, msgRecordFailed, fmt.Errorf("%w: %w", domain.ErrStorageFailure, err))
	}
	p.logger.Info().
		Str("owner_id", in.OwnerID).
		Str("transformation_id", record.ID).
		Msg("persist: transformation recorded")
	return &Outcome{Kind: StableURL, URL: url, Record: record}, nil
}

// Upload stores arbitrary bytes under key with the upload timeout applied.
func (p *Persister) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	return p.upload(ctx, key, data, contentType)
}

func (p *Persister) upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if p.store == nil {
		return "", errors.New("persist: object store not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, p.uploadTimeout)
	defer cancel()
	return p.store.Upload(ctx, key, data, contentType)
}

func (p *Persister) fetch(ctx context.Context, url string) ([]byte, string, error) {
	if p.fetcher == nil {
		return nil, "", errors.New("persist: fetcher not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()
	return p.fetcher.Fetch(ctx, url)
}

func cancelled(err error) error {
	return domain.NewError(domain.KindProviderError, "The request was cancelled.", err)
}
