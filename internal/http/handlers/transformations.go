package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SyncraLabs/aura/internal/domain"
	"github.com/SyncraLabs/aura/internal/transform"
)

const (
	defaultMaxUpload = 25 << 20
	multipartMemory  = 32 << 20
)

type transformationDTO struct {
	ID        string    `json:"id"`
	BeforeURL string    `json:"beforeImageUrl"`
	AfterURL  string    `json:"afterImageUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateTransformation accepts a multipart upload with an "image" file and a
// "service" field.
func (a *App) CreateTransformation(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, domain.KindUnauthorized, "missing user context")
		return
	}
	maxUpload := a.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			a.error(w, http.StatusRequestEntityTooLarge, domain.KindInvalidImage, "The uploaded file is too large.")
			return
		}
		a.error(w, http.StatusBadRequest, domain.KindInvalidImage, "Expected a multipart form with an image.")
		return
	}

	service := strings.TrimSpace(r.FormValue("service"))
	if service == "" {
		service = strings.TrimSpace(r.FormValue("serviceName"))
	}
	if service == "" {
		a.error(w, http.StatusBadRequest, "", "A service is required.")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		a.error(w, http.StatusBadRequest, domain.KindInvalidImage, "An image file is required.")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		a.error(w, http.StatusBadRequest, domain.KindInvalidImage, "The uploaded file could not be read.")
		return
	}

	res := a.Transformer.Transform(r.Context(), transform.Request{
		OwnerID:     userID,
		Image:       data,
		Filename:    header.Filename,
		ServiceName: service,
	})
	a.json(w, statusForKind(res.Kind), res)
}

// ListTransformations returns the caller's clinic gallery, newest first.
func (a *App) ListTransformations(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, domain.KindUnauthorized, "missing user context")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	clinic, err := a.Clinics.GetByOwner(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.json(w, http.StatusOK, map[string]any{"items": []transformationDTO{}})
			return
		}
		a.logger().Error().Err(err).Str("owner_id", userID).Msg("load clinic failed")
		a.error(w, http.StatusInternalServerError, domain.KindStorageError, "failed to load clinic")
		return
	}
	items, err := a.Transformations.ListByClinic(r.Context(), clinic.ID, limit)
	if err != nil {
		a.logger().Error().Err(err).Str("clinic_id", clinic.ID).Msg("list transformations failed")
		a.error(w, http.StatusInternalServerError, domain.KindStorageError, "failed to list transformations")
		return
	}
	out := make([]transformationDTO, 0, len(items))
	for _, t := range items {
		out = append(out, transformationDTO{ID: t.ID, BeforeURL: t.BeforeURL, AfterURL: t.AfterURL, CreatedAt: t.CreatedAt})
	}
	a.json(w, http.StatusOK, map[string]any{"items": out})
}
