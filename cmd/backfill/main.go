package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/SyncraLabs/aura/internal/bootstrap"
	"github.com/SyncraLabs/aura/internal/infra"
	"github.com/SyncraLabs/aura/internal/onboarding"
	"github.com/SyncraLabs/aura/internal/providers/prompt"
)

// backfill re-runs onboarding for an existing clinic so every listed service
// gets a fresh stored instruction.
func main() {
	var (
		ownerFlag    string
		servicesFlag string
		timeoutFlag  time.Duration
	)
	flag.StringVar(&ownerFlag, "owner", "", "clinic owner user ID")
	flag.StringVar(&servicesFlag, "services", "", "comma-separated services to add (defaults to the clinic's saved list)")
	flag.DurationVar(&timeoutFlag, "timeout", 5*time.Minute, "overall deadline")
	flag.Parse()

	owner := strings.TrimSpace(ownerFlag)
	if owner == "" {
		exitWithError(errors.New("-owner is required"))
	}

	_ = godotenv.Load()
	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	logger := infra.NewLogger("cli").With().Str("cmd", "backfill").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()

	st, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		exitWithError(fmt.Errorf("open stores: %w", err))
	}
	defer st.Close()

	clinic, err := st.Clinics.GetByOwner(ctx, owner)
	if err != nil {
		exitWithError(fmt.Errorf("load clinic: %w", err))
	}

	services := append([]string(nil), clinic.Services...)
	for _, s := range strings.Split(servicesFlag, ",") {
		if s = strings.TrimSpace(s); s != "" {
			services = append(services, s)
		}
	}
	if len(services) == 0 {
		exitWithError(errors.New("clinic has no services; pass -services"))
	}

	generator, err := bootstrap.Generator(ctx, cfg, &logger)
	if err != nil {
		exitWithError(err)
	}
	cache, closeCache := bootstrap.OpenCache(ctx, cfg, logger)
	defer closeCache()

	svc := onboarding.NewService(onboarding.Options{
		Clinics:     st.Clinics,
		Services:    st.Services,
		Generator:   prompt.NewResolver(prompt.ResolverOptions{Generator: generator, Logger: &logger}),
		Cache:       cache,
		Concurrency: cfg.OnboardingConcurrency,
		RPS:         float64(cfg.OnboardingRPS),
		Logger:      &logger,
	})
	summary, err := svc.SaveProfile(ctx, owner, onboarding.Profile{
		Name:           clinic.Name,
		Sector:         string(clinic.Sector),
		Description:    clinic.Description,
		Services:       services,
		BusinessDocURL: clinic.BusinessDocURL,
	})
	if err != nil {
		exitWithError(fmt.Errorf("backfill: %w", err))
	}

	for _, r := range summary.Services {
		status := string(r.Source)
		if r.Error != "" {
			status = "failed: " + r.Error
		}
		fmt.Printf("%-32s %-8s %s\n", r.Service, status, r.Instruction)
	}
	if summary.Failed > 0 {
		exitWithError(fmt.Errorf("%d service(s) failed", summary.Failed))
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
