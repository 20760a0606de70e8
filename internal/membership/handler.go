// internal/membership/handler.go
package membership

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"libradesk/internal/httpx"
	"libradesk/internal/lifecycle"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/members", h.handleRegisterMember)
	r.Get("/members/{id}", h.handleGetMember)
	r.Get("/members/{id}/memberships", h.handleListMemberships)

	r.Post("/memberships", h.handleCreateMembership)
	r.Get("/memberships/{id}", h.handleGetMembership)
	r.Post("/memberships/{id}/submit", h.handleSubmitMembership)
	r.Post("/memberships/{id}/cancel", h.handleCancelMembership)
}

func pathID(w http.ResponseWriter, r *http.Request, what string) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "invalid "+what+" ID", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func (h *Handler) handleRegisterMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
	}

	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}

	member, err := h.service.RegisterMember(r.Context(), req.FullName, req.Email, req.Phone)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, member)
}

func (h *Handler) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "member")
	if !ok {
		return
	}

	member, err := h.service.GetMember(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, member)
}

func (h *Handler) handleListMemberships(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "member")
	if !ok {
		return
	}

	memberships, err := h.service.ListMemberships(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, memberships)
}

func (h *Handler) handleCreateMembership(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID string         `json:"member_id"`
		FromDate lifecycle.Date `json:"from_date"`
	}

	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}

	m, err := h.service.CreateMembership(r.Context(), req.MemberID, req.FromDate)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) handleGetMembership(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "membership")
	if !ok {
		return
	}

	m, err := h.service.GetMembership(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) handleSubmitMembership(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "membership")
	if !ok {
		return
	}

	m, err := h.service.SubmitMembership(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) handleCancelMembership(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "membership")
	if !ok {
		return
	}

	m, err := h.service.CancelMembership(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, m)
}
