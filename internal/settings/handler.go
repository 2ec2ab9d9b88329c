package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	appMiddleware "taskkeeper/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// Handler — HTTP-роуты предпочтений, настроек и очистки хранилища.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register навешивает роуты на r (обычно это /api/v1).
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.JSONHeaderMiddleware)

		r.Get("/preferences", h.getPreferences)
		r.Put("/preferences", h.updatePreferences)
		r.Get("/settings", h.getSettings)
		r.Post("/settings/launched", h.setLaunched)
		r.Delete("/storage", h.clearAll)
	})
}

func (h *Handler) getPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Preferences(r.Context())
	if err != nil {
		http.Error(w, "Failed to load preferences", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(p)
}

// updatePreferences обрабатывает PUT /preferences.
//
// Тело накладывается поверх текущих значений: можно прислать одно поле.
func (h *Handler) updatePreferences(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	p, err := h.svc.UpdatePreferences(r.Context(), func(p *Preferences) error {
		if err := json.Unmarshal(raw, p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, "Failed to save preferences", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(p)
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.AppSettings(r.Context())
	if err != nil {
		http.Error(w, "Failed to load settings", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(a)
}

func (h *Handler) setLaunched(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.SetLaunched(r.Context())
	if err != nil {
		http.Error(w, "Failed to save settings", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(a)
}

func (h *Handler) clearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearAll(r.Context()); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
}
