// Package bootstrap opens the backends selected by configuration. It is
// shared by the API server and the operator commands.
package bootstrap

import (
	"context"

	"github.com/SyncraLabs/aura/internal/adapter/repo"
	"github.com/SyncraLabs/aura/internal/adapter/supabaserepo"
	"github.com/SyncraLabs/aura/internal/domain"
	"github.com/SyncraLabs/aura/internal/infra"
	"github.com/SyncraLabs/aura/internal/infra/jwks"
	"github.com/SyncraLabs/aura/internal/middleware"
	"github.com/SyncraLabs/aura/internal/providers/prompt"
	"github.com/SyncraLabs/aura/internal/storage"
)

// Stores groups the relational repositories.
type Stores struct {
	Clinics         domain.ClinicRepository
	Services        domain.ServiceRepository
	Transformations domain.TransformationRepository
	Close           func()
}

// OpenStores connects the configured store backend.
func OpenStores(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*Stores, error) {
	switch cfg.StoreBackend {
	case infra.StoreBackendPostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		runner := infra.NewSQLRunner(pool, logger, cfg.DBTimeout)
		return &Stores{
			Clinics:         repo.NewClinicRepository(runner),
			Services:        repo.NewServiceRepository(runner),
			Transformations: repo.NewTransformationRepository(runner),
			Close:           pool.Close,
		}, nil
	default:
		client, err := infra.NewSupabaseClient(cfg)
		if err != nil {
			return nil, err
		}
		store := supabaserepo.NewStore(client)
		return &Stores{Clinics: store, Services: store, Transformations: store, Close: func() {}}, nil
	}
}

// OpenObjectStore returns the object store and, for the filesystem backend,
// the directory to serve under /static.
func OpenObjectStore(cfg *infra.Config) (storage.ObjectStore, string, error) {
	if cfg.StorageBackend == infra.StorageBackendFilesystem {
		fs, err := storage.NewFileStore(cfg.StorageDir, cfg.StorageBaseURL)
		if err != nil {
			return nil, "", err
		}
		return fs, fs.BasePath(), nil
	}
	sb, err := storage.NewSupabaseStore(storage.SupabaseOptions{
		ProjectURL: cfg.SupabaseURL,
		ServiceKey: cfg.SupabaseServiceKey,
		Bucket:     cfg.StorageBucket,
		Timeout:    cfg.StorageTimeout,
	})
	if err != nil {
		return nil, "", err
	}
	return sb, "", nil
}

// OpenCache prefers Redis and falls back to an in-process cache.
func OpenCache(ctx context.Context, cfg *infra.Config, logger infra.Logger) (prompt.InstructionCache, func()) {
	if cfg.RedisURL == "" {
		return prompt.NewMemoryCache(cfg.PromptCacheTTL), func() {}
	}
	client, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using in-process instruction cache")
		return prompt.NewMemoryCache(cfg.PromptCacheTTL), func() {}
	}
	return prompt.NewRedisCache(client, cfg.PromptCacheTTL), func() { _ = client.Close() }
}

// Generator returns the live instruction generator, or nil when no Gemini
// key is configured.
func Generator(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (prompt.Generator, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, nil
	}
	return prompt.NewGeminiGenerator(ctx, prompt.GeminiOptions{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.PromptTimeout,
		Logger:  logger,
	})
}

// JWTOptions builds the token verification settings.
func JWTOptions(cfg *infra.Config) middleware.JWTOptions {
	opts := middleware.JWTOptions{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience}
	if cfg.JWTJWKSURL != "" {
		opts.Keys = jwks.NewKeySet(cfg.JWTJWKSURL, nil)
	}
	return opts
}
