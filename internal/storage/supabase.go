package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SupabaseOptions configures the Supabase storage uploader.
type SupabaseOptions struct {
	ProjectURL string
	ServiceKey string
	Bucket     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// SupabaseStore uploads objects through the Supabase storage REST API into a
// public bucket.
type SupabaseStore struct {
	projectURL string
	serviceKey string
	bucket     string
	client     *http.Client
}

func NewSupabaseStore(opts SupabaseOptions) (*SupabaseStore, error) {
	projectURL := strings.TrimRight(strings.TrimSpace(opts.ProjectURL), "/")
	if projectURL == "" {
		return nil, errors.New("storage: supabase project url is required")
	}
	if strings.TrimSpace(opts.ServiceKey) == "" {
		return nil, errors.New("storage: supabase service key is required")
	}
	bucket := strings.Trim(strings.TrimSpace(opts.Bucket), "/")
	if bucket == "" {
		bucket = "clinic-assets"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &SupabaseStore{projectURL: projectURL, serviceKey: opts.ServiceKey, bucket: bucket, client: client}, nil
}

// Upload stores data at key, overwriting any previous object, and returns
// the bucket's public URL for it.
func (s *SupabaseStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.projectURL, s.bucket, escapePath(cleanKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("storage: build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage: upload %s: %w", cleanKey, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("storage: upload %s: status %d: %s", cleanKey, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return s.PublicURL(cleanKey), nil
}

// PublicURL returns the public object URL for key.
func (s *SupabaseStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.projectURL, s.bucket, escapePath(key))
}

func escapePath(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

var _ ObjectStore = (*SupabaseStore)(nil)
