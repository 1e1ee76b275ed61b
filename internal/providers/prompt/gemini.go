package prompt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/SyncraLabs/aura/internal/domain"
	"github.com/SyncraLabs/aura/internal/infra"
)

const (
	geminiDefaultModel   = "gemini-1.5-flash"
	geminiDefaultTimeout = 15 * time.Second
)

// ErrMissingAPIKey indicates that the generator was configured without credentials.
var ErrMissingAPIKey = errors.New("gemini: api key is required")

// GeminiOptions configures the live instruction generator.
type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *infra.Logger
}

// GeminiGenerator calls Gemini through the genai SDK.
type GeminiGenerator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *infra.Logger
}

func NewGeminiGenerator(ctx context.Context, opts GeminiOptions) (*GeminiGenerator, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = geminiDefaultModel
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = geminiDefaultTimeout
	}
	return &GeminiGenerator{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  infra.LoggerOrDiscard(opts.Logger),
	}, nil
}

// Generate asks the model for one instruction. Empty replies are errors.
func (g *GeminiGenerator) Generate(ctx context.Context, service string, sector domain.Sector) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	temperature := float32(0.2)
	result, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		[]*genai.Content{{
			Role:  "user",
			Parts: []*genai.Part{genai.NewPartFromText(BuildInput(service, sector))},
		}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(SystemInstruction)}},
			Temperature:       &temperature,
		},
	)
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}
	text := CleanInstruction(firstText(result))
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	g.logger.Debug().Str("model", g.model).Str("service", service).Str("instruction", text).Msg("gemini: generated instruction")
	return text, nil
}

func firstText(result *genai.GenerateContentResponse) string {
	if result == nil {
		return ""
	}
	for _, candidate := range result.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range candidate.Content.Parts {
			if part != nil && part.Text != "" {
				sb.WriteString(part.Text)
			}
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			return s
		}
	}
	return ""
}

var _ Generator = (*GeminiGenerator)(nil)
