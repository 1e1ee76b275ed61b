package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SyncraLabs/aura/internal/domain"
	"github.com/SyncraLabs/aura/internal/middleware"
	"github.com/SyncraLabs/aura/internal/onboarding"
	"github.com/SyncraLabs/aura/internal/transform"
)

type transformerFunc func(ctx context.Context, req transform.Request) transform.Result

func (f transformerFunc) Transform(ctx context.Context, req transform.Request) transform.Result {
	return f(ctx, req)
}

type profileSaverFunc func(ctx context.Context, ownerID string, p onboarding.Profile) (*onboarding.Summary, error)

func (f profileSaverFunc) SaveProfile(ctx context.Context, ownerID string, p onboarding.Profile) (*onboarding.Summary, error) {
	return f(ctx, ownerID, p)
}

type stubClinics struct {
	clinic *domain.Clinic
	err    error
}

func (s stubClinics) GetByOwner(context.Context, string) (*domain.Clinic, error) {
	return s.clinic, s.err
}

func (s stubClinics) UpsertByOwner(_ context.Context, c *domain.Clinic) (*domain.Clinic, error) {
	return c, nil
}

type stubTransformations struct {
	items     []domain.Transformation
	gotLimit  int
	gotClinic string
}

func (s *stubTransformations) Insert(context.Context, *domain.Transformation) error { return nil }

func (s *stubTransformations) ListByClinic(_ context.Context, clinicID string, limit int) ([]domain.Transformation, error) {
	s.gotClinic, s.gotLimit = clinicID, limit
	return s.items, nil
}

func multipartRequest(t *testing.T, service string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if service != "" {
		if err := w.WriteField("service", service); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if image != nil {
		part, err := w.CreateFormFile("image", "before.jpg")
		if err != nil {
			t.Fatalf("create file: %v", err)
		}
		_, _ = part.Write(image)
	}
	_ = w.Close()
	req := httptest.NewRequest(http.MethodPost, "/v1/transformations", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req.WithContext(middleware.ContextWithUserID(req.Context(), "owner-1"))
}

func decodeResult(t *testing.T, rr *httptest.ResponseRecorder) transform.Result {
	t.Helper()
	var res transform.Result
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return res
}

func TestCreateTransformationPassesUpload(t *testing.T) {
	var got transform.Request
	app := &App{Transformer: transformerFunc(func(_ context.Context, req transform.Request) transform.Result {
		got = req
		return transform.Ok("https://storage.test/owner-1/result_final_1.png", true)
	})}

	rr := httptest.NewRecorder()
	app.CreateTransformation(rr, multipartRequest(t, "Teeth Whitening", []byte("jpeg-bytes")))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	res := decodeResult(t, rr)
	if !res.Success || res.ImageURL == "" || !res.Durable {
		t.Fatalf("unexpected result %+v", res)
	}
	if got.OwnerID != "owner-1" || got.ServiceName != "Teeth Whitening" || string(got.Image) != "jpeg-bytes" || got.Filename != "before.jpg" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestCreateTransformationMapsKindsToStatus(t *testing.T) {
	tests := []struct {
		kind domain.Kind
		want int
	}{
		{domain.KindInvalidImage, http.StatusBadRequest},
		{domain.KindUnauthorized, http.StatusUnauthorized},
		{domain.KindProviderSafetyRejected, http.StatusUnprocessableEntity},
		{domain.KindProviderError, http.StatusBadGateway},
		{domain.KindStorageError, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(string(tc.kind), func(t *testing.T) {
			app := &App{Transformer: transformerFunc(func(context.Context, transform.Request) transform.Result {
				return transform.Fail(domain.NewError(tc.kind, "nope", nil))
			})}
			rr := httptest.NewRecorder()
			app.CreateTransformation(rr, multipartRequest(t, "Veneers", []byte("x")))
			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d", rr.Code, tc.want)
			}
			res := decodeResult(t, rr)
			if res.Success || res.ImageURL != "" || res.Kind != tc.kind || res.Error != "nope" {
				t.Fatalf("unexpected result %+v", res)
			}
		})
	}
}

func TestCreateTransformationValidatesForm(t *testing.T) {
	called := false
	app := &App{Transformer: transformerFunc(func(context.Context, transform.Request) transform.Result {
		called = true
		return transform.Result{}
	})}

	rr := httptest.NewRecorder()
	app.CreateTransformation(rr, multipartRequest(t, "", []byte("x")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing service: status = %d", rr.Code)
	}
	var res transform.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Kind != "" || res.Error != "A service is required." {
		t.Fatalf("missing service: kind = %q, error = %q", res.Kind, res.Error)
	}

	rr = httptest.NewRecorder()
	app.CreateTransformation(rr, multipartRequest(t, "Veneers", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing image: status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	app.CreateTransformation(rr, httptest.NewRequest(http.MethodPost, "/v1/transformations", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status = %d", rr.Code)
	}
	if called {
		t.Fatalf("transformer must not run for invalid requests")
	}
}

func TestCreateTransformationRejectsOversizedUpload(t *testing.T) {
	app := &App{MaxUploadBytes: 1024, Transformer: transformerFunc(func(context.Context, transform.Request) transform.Result {
		t.Fatalf("transformer must not run")
		return transform.Result{}
	})}
	rr := httptest.NewRecorder()
	app.CreateTransformation(rr, multipartRequest(t, "Veneers", bytes.Repeat([]byte("x"), 4096)))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rr.Code)
	}
}

func TestListTransformations(t *testing.T) {
	created := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	store := &stubTransformations{items: []domain.Transformation{{ID: "t1", BeforeURL: "b", AfterURL: "a", CreatedAt: created}}}
	app := &App{
		Clinics:         stubClinics{clinic: &domain.Clinic{ID: "clinic-1"}},
		Transformations: store,
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/transformations?limit=5", nil)
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "owner-1"))
	rr := httptest.NewRecorder()
	app.ListTransformations(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if store.gotClinic != "clinic-1" || store.gotLimit != 5 {
		t.Fatalf("list called with %q/%d", store.gotClinic, store.gotLimit)
	}
	var payload struct {
		Items []transformationDTO `json:"items"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].AfterURL != "a" || !payload.Items[0].CreatedAt.Equal(created) {
		t.Fatalf("unexpected items %+v", payload.Items)
	}
}

func TestListTransformationsWithoutClinic(t *testing.T) {
	app := &App{Clinics: stubClinics{err: domain.ErrNotFound}, Transformations: &stubTransformations{}}
	req := httptest.NewRequest(http.MethodGet, "/v1/transformations", nil)
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "owner-1"))
	rr := httptest.NewRecorder()
	app.ListTransformations(rr, req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"items":[]`) {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
}

func TestSaveOnboarding(t *testing.T) {
	var gotOwner string
	var gotProfile onboarding.Profile
	app := &App{Onboarding: profileSaverFunc(func(_ context.Context, ownerID string, p onboarding.Profile) (*onboarding.Summary, error) {
		gotOwner, gotProfile = ownerID, p
		return &onboarding.Summary{ClinicID: "clinic-1"}, nil
	})}

	body := `{"name":"Smile Lab","type":"dental","services":["Veneers","Braces"]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/onboarding", strings.NewReader(body))
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "owner-1"))
	rr := httptest.NewRecorder()
	app.SaveOnboarding(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rr.Code, rr.Body.String())
	}
	if gotOwner != "owner-1" || gotProfile.Sector != "dental" || len(gotProfile.Services) != 2 {
		t.Fatalf("unexpected call %q %+v", gotOwner, gotProfile)
	}
}

func TestSaveOnboardingErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"no name", `{}`, onboarding.ErrNoName, http.StatusBadRequest},
		{"storage", `{"name":"x"}`, domain.NewError(domain.KindStorageError, "db down", errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := &App{Onboarding: profileSaverFunc(func(context.Context, string, onboarding.Profile) (*onboarding.Summary, error) {
				return nil, tc.err
			})}
			req := httptest.NewRequest(http.MethodPost, "/v1/onboarding", strings.NewReader(tc.body))
			req = req.WithContext(middleware.ContextWithUserID(req.Context(), "owner-1"))
			rr := httptest.NewRecorder()
			app.SaveOnboarding(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestOpenAPIJSONRevalidates(t *testing.T) {
	app := &App{}

	rec := httptest.NewRecorder()
	app.OpenAPIJSON(rec, httptest.NewRequest(http.MethodGet, "/v1/openapi.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !json.Valid(rec.Body.Bytes()) {
		t.Fatal("embedded document is not valid JSON")
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/openapi.json", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	app.OpenAPIJSON(rec, req)
	if rec.Code != http.StatusNotModified || rec.Body.Len() != 0 {
		t.Fatalf("expected empty 304, got %d with %d bytes", rec.Code, rec.Body.Len())
	}
}
