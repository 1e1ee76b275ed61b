// Package imageedit calls the OpenAI images/edits endpoint and recovers from
// the provider's mask requirement with a single masked retry.
package imageedit

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/SyncraLabs/aura/internal/domain"
	"github.com/SyncraLabs/aura/internal/infra"
)

const (
	defaultBaseURL  = "https://api.openai.com/v1"
	defaultModel    = "gpt-image-1.5"
	defaultFidelity = "high"
	defaultTimeout  = 120 * time.Second
	maxErrorBody    = 8 << 10
	maxResponseBody = 64 << 20

	msgProviderFailed  = "Image generation failed. Please try again."
	msgProviderTimeout = "The image provider did not respond in time. Please try again."
	msgNoOutput        = "The image provider returned no image. Please try again."
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("imageedit: api key is required")

// Options configures the edit client.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	Fidelity   string
	HTTPClient *http.Client
	// Timeout bounds each attempt separately.
	Timeout    time.Duration
	Classifier Classifier
	Logger     *infra.Logger
}

// Image is one multipart image part.
type Image struct {
	Data        []byte
	ContentType string
	Filename    string
}

// EditRequest is a single transformation. Width and Height describe Image
// and size the fallback mask.
type EditRequest struct {
	Image       Image
	Width       int
	Height      int
	Instruction string
	Reference   *Image
}

// EditResult holds either inline bytes or a provider-hosted URL.
type EditResult struct {
	Data        []byte
	ContentType string
	URL         string
	Masked      bool
	Attempts    int
}

// Inline reports whether the provider returned the image bytes directly.
func (r *EditResult) Inline() bool {
	return r != nil && len(r.Data) > 0
}

// ResponseError is a non-2xx reply from the provider.
type ResponseError struct {
	Status    int
	Body      string
	Signature Signature
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("imageedit: status %d (%s): %s", e.Status, e.Signature, e.Body)
}

// Client performs edit calls.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	fidelity   string
	httpClient *http.Client
	timeout    time.Duration
	classifier Classifier
	logger     *infra.Logger
}

// NewClient constructs a client with defaults for every unset option.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      coalesce(opts.Model, defaultModel),
		fidelity:   coalesce(opts.Fidelity, defaultFidelity),
		httpClient: httpClient,
		timeout:    timeout,
		classifier: classifier,
		logger:     infra.LoggerOrDiscard(opts.Logger),
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Edit submits the maskless request and, only when the provider demands a
// mask, retries once with a fully transparent one. Safety rejections are
// terminal. Every failure is a *domain.Error.
func (c *Client) Edit(ctx context.Context, req EditRequest) (*EditResult, error) {
	if !c.HasCredentials() {
		return nil, domain.NewError(domain.KindProviderError, msgProviderFailed, ErrMissingAPIKey)
	}
	if strings.TrimSpace(req.Instruction) == "" || len(req.Image.Data) == 0 {
		return nil, domain.NewError(domain.KindProviderError, msgProviderFailed, errors.New("imageedit: image and instruction are required"))
	}

	result, err := c.attempt(ctx, req, nil)
	if err == nil {
		result.Attempts = 1
		return result, nil
	}

	var respErr *ResponseError
	if !errors.As(err, &respErr) {
		return nil, providerError(err)
	}
	switch respErr.Signature {
	case SignatureSafetyRejected:
		c.logger.Info().Int("status", respErr.Status).Msg("imageedit: safety rejection")
		return nil, domain.NewError(domain.KindProviderSafetyRejected, domain.SafetyRejectionMessage,
			fmt.Errorf("%w: %v", domain.ErrSafetyRejected, respErr))
	case SignatureMaskRequired:
		c.logger.Info().Int("status", respErr.Status).Msg("imageedit: mask required, retrying with transparent mask")
	default:
		return nil, providerError(err)
	}

	w, h := req.Width, req.Height
	if w <= 0 || h <= 0 {
		cfg, _, decErr := image.DecodeConfig(bytes.NewReader(req.Image.Data))
		if decErr != nil {
			return nil, providerError(fmt.Errorf("imageedit: size mask: %w", decErr))
		}
		w, h = cfg.Width, cfg.Height
	}
	mask, err := TransparentMask(w, h)
	if err != nil {
		return nil, providerError(err)
	}
	result, err = c.attempt(ctx, req, mask)
	if err != nil {
		return nil, providerError(fmt.Errorf("masked retry: %w", err))
	}
	result.Masked = true
	result.Attempts = 2
	return result, nil
}

func (c *Client) attempt(ctx context.Context, req EditRequest, mask []byte) (*EditResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, contentType, err := c.buildForm(req, mask)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/edits", body)
	if err != nil {
		return nil, fmt.Errorf("imageedit: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("imageedit: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ResponseError{
			Status:    resp.StatusCode,
			Body:      strings.TrimSpace(string(raw)),
			Signature: c.classifier.Classify(resp.StatusCode, raw),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("imageedit: read response: %w", err)
	}
	result, err := decodeResult(raw)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("model", c.model).
		Bool("masked", mask != nil).
		Bool("inline", result.Inline()).
		Dur("took", time.Since(start)).
		Msg("imageedit: edit completed")
	return result, nil
}

func (c *Client) buildForm(req EditRequest, mask []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := writeFile(w, "image", withDefaults(req.Image, "image")); err != nil {
		return nil, "", err
	}
	if req.Reference != nil && len(req.Reference.Data) > 0 {
		if err := writeFile(w, "image", withDefaults(*req.Reference, "reference")); err != nil {
			return nil, "", err
		}
	}
	if mask != nil {
		if err := writeFile(w, "mask", Image{Data: mask, ContentType: "image/png", Filename: "mask.png"}); err != nil {
			return nil, "", err
		}
	}
	fields := []struct{ name, value string }{
		{"prompt", req.Instruction},
		{"model", c.model},
		{"input_fidelity", c.fidelity},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("imageedit: write %s: %w", f.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("imageedit: close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field string, img Image) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, img.Filename))
	h.Set("Content-Type", img.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("imageedit: create %s part: %w", field, err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return fmt.Errorf("imageedit: write %s part: %w", field, err)
	}
	return nil
}

func withDefaults(img Image, name string) Image {
	if img.ContentType == "" {
		img.ContentType = http.DetectContentType(img.Data)
	}
	if img.Filename == "" {
		img.Filename = name + "." + extensionFor(img.ContentType)
	}
	return img
}

type editResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

func decodeResult(raw []byte) (*EditResult, error) {
	var decoded editResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("imageedit: decode response: %w", err)
	}
	for _, item := range decoded.Data {
		if u := strings.TrimSpace(item.URL); u != "" {
			return &EditResult{URL: u}, nil
		}
		if b64 := strings.TrimSpace(item.B64JSON); b64 != "" {
			data, err := base64.StdEncoding.DecodeString(b64)
			if err != nil {
				return nil, fmt.Errorf("imageedit: decode b64_json: %w", err)
			}
			return &EditResult{Data: data, ContentType: http.DetectContentType(data)}, nil
		}
	}
	return nil, domain.NewError(domain.KindProviderError, msgNoOutput, domain.ErrNoOutput)
}

func providerError(err error) error {
	var typed *domain.Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewError(domain.KindProviderError, msgProviderTimeout, err)
	}
	return domain.NewError(domain.KindProviderError, msgProviderFailed, fmt.Errorf("%w: %w", domain.ErrProviderFailure, err))
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
