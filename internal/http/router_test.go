package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/SyncraLabs/aura/internal/domain"
	"github.com/SyncraLabs/aura/internal/http/handlers"
	"github.com/SyncraLabs/aura/internal/middleware"
)

type emptyClinics struct{}

func (emptyClinics) GetByOwner(context.Context, string) (*domain.Clinic, error) {
	return nil, domain.ErrNotFound
}

func (emptyClinics) UpsertByOwner(_ context.Context, c *domain.Clinic) (*domain.Clinic, error) {
	return c, nil
}

func newTestRouter(t *testing.T, staticDir string) (http.Handler, string) {
	t.Helper()
	secret := "router-test-secret-router-test-secret"
	app := &handlers.App{Clinics: emptyClinics{}}
	router := NewRouter(app, RouterOptions{
		Logger:          zerolog.Nop(),
		JWT:             middleware.JWTOptions{Secret: secret, Audience: "authenticated"},
		RateLimitPerMin: 10,
		StaticDir:       staticDir,
	})
	token, err := middleware.SignJWT(secret, middleware.TokenClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "owner-1",
		Audience:  jwt.ClaimStrings{"authenticated"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return router, token
}

func TestRouterHealthIsPublic(t *testing.T) {
	router, _ := newTestRouter(t, "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestRouterRequiresToken(t *testing.T) {
	router, token := newTestRouter(t, "")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/transformations", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/transformations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d (%s)", rr.Code, rr.Body.String())
	}
}

func TestRouterServesStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "owner-1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "owner-1", "a.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	router, _ := newTestRouter(t, dir)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/owner-1/a.png", nil))
	body, _ := io.ReadAll(rr.Body)
	if rr.Code != http.StatusOK || string(body) != "png" {
		t.Fatalf("status = %d body = %q", rr.Code, body)
	}
}
