package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/SyncraLabs/aura/internal/bootstrap"
	httpapi "github.com/SyncraLabs/aura/internal/http"
	"github.com/SyncraLabs/aura/internal/http/handlers"
	"github.com/SyncraLabs/aura/internal/imageprep"
	"github.com/SyncraLabs/aura/internal/infra"
	"github.com/SyncraLabs/aura/internal/onboarding"
	"github.com/SyncraLabs/aura/internal/persist"
	"github.com/SyncraLabs/aura/internal/providers/imageedit"
	"github.com/SyncraLabs/aura/internal/providers/prompt"
	"github.com/SyncraLabs/aura/internal/storage"
	"github.com/SyncraLabs/aura/internal/transform"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api stopped with error")
	}
	logger.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *infra.Config, logger infra.Logger) error {
	st, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	objects, staticDir, err := bootstrap.OpenObjectStore(cfg)
	if err != nil {
		return err
	}
	fetcher := storage.NewHTTPFetcher(nil, cfg.FetchTimeout)

	generator, err := bootstrap.Generator(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	if generator == nil {
		logger.Warn().Msg("GEMINI_API_KEY not set, instructions use the deterministic fallback")
	}

	cache, closeCache := bootstrap.OpenCache(ctx, cfg, logger)
	defer closeCache()

	resolver := prompt.NewResolver(prompt.ResolverOptions{
		Store:           st.Services,
		Generator:       generator,
		Cache:           cache,
		Logger:          &logger,
		StoreTimeout:    cfg.DBTimeout,
		GenerateTimeout: cfg.PromptTimeout,
	})

	editor := imageedit.NewClient(imageedit.Options{
		APIKey:   cfg.OpenAIAPIKey,
		BaseURL:  cfg.OpenAIBaseURL,
		Model:    cfg.ImageEditModel,
		Fidelity: cfg.ImageEditFidelity,
		Timeout:  cfg.EditTimeout,
		Logger:   &logger,
	})
	if !editor.HasCredentials() {
		logger.Warn().Msg("OPENAI_API_KEY not set, transformations will fail")
	}

	persister := persist.New(persist.Options{
		Store:         objects,
		Fetcher:       fetcher,
		Records:       st.Transformations,
		Logger:        &logger,
		UploadTimeout: cfg.StorageTimeout,
		FetchTimeout:  cfg.FetchTimeout,
	})

	app := &handlers.App{
		Logger: &logger,
		Transformer: transform.NewService(transform.Options{
			Clinics:      st.Clinics,
			Services:     st.Services,
			Preprocessor: imageprep.New(imageprep.Options{MaxEdge: cfg.ImageMaxEdge, MaxBytes: cfg.ImageMaxBytes}),
			Resolver:     resolver,
			Editor:       editor,
			Persister:    persister,
			Fetcher:      fetcher,
			FetchTimeout: cfg.FetchTimeout,
			Logger:       &logger,
		}),
		Onboarding: onboarding.NewService(onboarding.Options{
			Clinics:     st.Clinics,
			Services:    st.Services,
			Generator:   resolver,
			Cache:       cache,
			Concurrency: cfg.OnboardingConcurrency,
			RPS:         float64(cfg.OnboardingRPS),
			Logger:      &logger,
		}),
		Clinics:         st.Clinics,
		Transformations: st.Transformations,
		MaxUploadBytes:  cfg.MaxUploadBytes,
	}

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          logger,
		JWT:             bootstrap.JWTOptions(cfg),
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		StaticDir:       staticDir,
	})

	logger.Info().
		Str("store", cfg.StoreBackend).
		Str("storage", cfg.StorageBackend).
		Msgf("API listening on :%s", cfg.Port)
	return infra.NewHTTPServer(cfg, router).Run(ctx)
}
