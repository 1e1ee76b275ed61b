package handlers

import (
	"net/http"
	"time"
)

func (a *App) Health(w http.ResponseWriter, _ *http.Request) {
	a.json(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "aura",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
