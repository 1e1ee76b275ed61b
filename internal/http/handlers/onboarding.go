package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/SyncraLabs/aura/internal/domain"
	"github.com/SyncraLabs/aura/internal/onboarding"
)

const maxProfileBytes = 1 << 20

func (a *App) SaveOnboarding(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, domain.KindUnauthorized, "missing user context")
		return
	}
	var profile onboarding.Profile
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxProfileBytes)).Decode(&profile); err != nil {
		a.json(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid payload"})
		return
	}
	summary, err := a.Onboarding.SaveProfile(r.Context(), userID, profile)
	if err != nil {
		if errors.Is(err, onboarding.ErrNoName) {
			a.json(w, http.StatusBadRequest, map[string]any{"success": false, "error": "clinic name is required"})
			return
		}
		a.logger().Error().Err(err).Str("owner_id", userID).Msg("onboarding failed")
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "summary": summary})
}
