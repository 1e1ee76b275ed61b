package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreBackendSupabase = "supabase"
	StoreBackendPostgres = "postgres"

	StorageBackendSupabase   = "supabase"
	StorageBackendFilesystem = "filesystem"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTJWKSURL  string

	StoreBackend       string
	DatabaseURL        string
	SupabaseURL        string
	SupabaseServiceKey string

	StorageBackend string
	StorageBucket  string
	StorageDir     string
	StorageBaseURL string

	OpenAIAPIKey      string
	OpenAIBaseURL     string
	ImageEditModel    string
	ImageEditFidelity string

	GeminiAPIKey string
	GeminiModel  string

	RedisURL       string
	PromptCacheTTL time.Duration

	ImageMaxEdge  int
	ImageMaxBytes int

	PromptTimeout  time.Duration
	EditTimeout    time.Duration
	StorageTimeout time.Duration
	FetchTimeout   time.Duration
	DBTimeout      time.Duration

	OnboardingConcurrency int
	OnboardingRPS         int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	MaxUploadBytes   int64
	CORSOrigins      []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTIssuer:   os.Getenv("JWT_ISSUER"),
		JWTAudience: getEnv("JWT_AUDIENCE", "authenticated"),
		JWTJWKSURL:  os.Getenv("JWT_JWKS_URL"),

		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", StoreBackendSupabase)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SupabaseURL:        strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendSupabase)),
		StorageBucket:  getEnv("STORAGE_BUCKET", "clinic-assets"),
		StorageDir:     getEnv("STORAGE_DIR", "./data/assets"),
		StorageBaseURL: os.Getenv("STORAGE_BASE_URL"),

		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ImageEditModel:    getEnv("IMAGE_EDIT_MODEL", "gpt-image-1.5"),
		ImageEditFidelity: getEnv("IMAGE_EDIT_FIDELITY", "high"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		RedisURL:       os.Getenv("REDIS_URL"),
		PromptCacheTTL: time.Second * time.Duration(getEnvInt("PROMPT_CACHE_TTL_SECONDS", 600)),

		ImageMaxEdge:  getEnvInt("IMAGE_MAX_EDGE", 1536),
		ImageMaxBytes: getEnvInt("IMAGE_MAX_BYTES", 3900*1024),

		PromptTimeout:  time.Second * time.Duration(getEnvInt("PROMPT_TIMEOUT_SECONDS", 15)),
		EditTimeout:    time.Second * time.Duration(getEnvInt("EDIT_TIMEOUT_SECONDS", 120)),
		StorageTimeout: time.Second * time.Duration(getEnvInt("STORAGE_TIMEOUT_SECONDS", 30)),
		FetchTimeout:   time.Second * time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 20)),
		DBTimeout:      time.Second * time.Duration(getEnvInt("DB_TIMEOUT_SECONDS", 5)),

		OnboardingConcurrency: getEnvInt("ONBOARDING_CONCURRENCY", 4),
		OnboardingRPS:         getEnvInt("ONBOARDING_RPS", 5),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_MB", 25)) << 20,
		CORSOrigins:      getEnvList("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	if cfg.JWTSecret == "" && cfg.JWTJWKSURL == "" {
		return nil, fmt.Errorf("JWT_SECRET or JWT_JWKS_URL is required")
	}

	switch cfg.StoreBackend {
	case StoreBackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", StoreBackendPostgres)
		}
	case StoreBackendSupabase:
		if err := cfg.requireSupabase("STORE_BACKEND"); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch cfg.StorageBackend {
	case StorageBackendSupabase:
		if err := cfg.requireSupabase("STORAGE_BACKEND"); err != nil {
			return nil, err
		}
	case StorageBackendFilesystem:
		if cfg.StorageBaseURL == "" {
			cfg.StorageBaseURL = fmt.Sprintf("http://localhost:%s/static", cfg.Port)
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	if cfg.OnboardingConcurrency <= 0 {
		cfg.OnboardingConcurrency = 1
	}

	return cfg, nil
}

func (c *Config) requireSupabase(setting string) error {
	if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required when %s=supabase", setting)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, fallback), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
