package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SyncraLabs/aura/internal/domain"
	"github.com/SyncraLabs/aura/internal/infra"
	"github.com/SyncraLabs/aura/internal/middleware"
	"github.com/SyncraLabs/aura/internal/onboarding"
	"github.com/SyncraLabs/aura/internal/transform"
)

// Transformer runs one before/after generation.
type Transformer interface {
	Transform(ctx context.Context, req transform.Request) transform.Result
}

// ProfileSaver handles clinic onboarding.
type ProfileSaver interface {
	SaveProfile(ctx context.Context, ownerID string, profile onboarding.Profile) (*onboarding.Summary, error)
}

type App struct {
	Logger          *infra.Logger
	Transformer     Transformer
	Onboarding      ProfileSaver
	Clinics         domain.ClinicRepository
	Transformations domain.TransformationRepository
	MaxUploadBytes  int64
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind domain.Kind, message string) {
	a.json(w, code, transform.Result{Kind: kind, Error: message})
}

func (a *App) fail(w http.ResponseWriter, err error) {
	res := transform.Fail(err)
	a.json(w, statusForKind(res.Kind), res)
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) logger() *infra.Logger {
	return infra.LoggerOrDiscard(a.Logger)
}

func statusForKind(kind domain.Kind) int {
	switch kind {
	case "":
		return http.StatusOK
	case domain.KindInvalidImage:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindProviderSafetyRejected:
		return http.StatusUnprocessableEntity
	case domain.KindStorageError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}
