package settings

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"libradesk/internal/httpx"
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/settings", h.handleGet)
	r.Put("/settings", h.handlePut)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	s, err := Load(r.Context(), h.store)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	var s Settings
	if err := httpx.Decode(r, &s); err != nil {
		httpx.Error(w, r, err)
		return
	}

	if err := Save(r.Context(), h.store, s); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}
