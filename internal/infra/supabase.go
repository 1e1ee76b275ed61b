package infra

import (
	"fmt"

	"github.com/supabase-community/supabase-go"
)

// NewSupabaseClient builds a service-role client for PostgREST access.
func NewSupabaseClient(cfg *Config) (*supabase.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}
	return client, nil
}
