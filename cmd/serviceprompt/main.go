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
	"github.com/SyncraLabs/aura/internal/providers/prompt"
)

func main() {
	var (
		ownerFlag   string
		serviceFlag string
		setFlag     string
		previewFlag bool
	)
	flag.StringVar(&ownerFlag, "owner", "", "clinic owner user ID")
	flag.StringVar(&serviceFlag, "service", "", "service name, e.g. \"Teeth Whitening\"")
	flag.StringVar(&setFlag, "set", "", "store this instruction instead of generating one")
	flag.BoolVar(&previewFlag, "preview", false, "print the resolved instruction without storing it")
	flag.Parse()

	owner := strings.TrimSpace(ownerFlag)
	service := prompt.NormalizeService(serviceFlag)
	if owner == "" || service == "" {
		exitWithError(errors.New("-owner and -service are required"))
	}

	_ = godotenv.Load()
	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	logger := infra.NewLogger("cli").With().Str("cmd", "serviceprompt").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
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

	instruction := prompt.CleanInstruction(setFlag)
	source := "manual"
	if instruction == "" {
		generator, err := bootstrap.Generator(ctx, cfg, &logger)
		if err != nil {
			exitWithError(err)
		}
		resolver := prompt.NewResolver(prompt.ResolverOptions{Generator: generator, Logger: &logger})
		var resolved prompt.Source
		instruction, resolved, err = resolver.Generate(ctx, service, clinic.Sector)
		if err != nil {
			fmt.Fprintf(os.Stderr, "live generation failed, using fallback: %v\n", err)
		}
		source = string(resolved)
	}

	fmt.Printf("clinic=%s sector=%s service=%q source=%s\n", clinic.ID, clinic.Sector, service, source)
	fmt.Println(instruction)
	if previewFlag {
		return
	}
	if err := st.Services.UpsertInstruction(ctx, clinic.ID, service, instruction); err != nil {
		exitWithError(fmt.Errorf("store instruction: %w", err))
	}
	cache, closeCache := bootstrap.OpenCache(ctx, cfg, logger)
	defer closeCache()
	cache.Set(ctx, prompt.CacheKey(clinic.ID, service), instruction)
	fmt.Println("instruction stored")
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
