// internal/circulation/handler.go
package circulation

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
	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", h.handleCreateTransaction)
		r.Get("/", h.handleListTransactions)
		r.Get("/{id}", h.handleGetTransaction)
		r.Post("/{id}/submit", h.handleSubmitTransaction)
		r.Post("/{id}/cancel", h.handleCancelTransaction)
		r.Post("/{id}/check-limit", h.handleCheckIssueLimit)
	})
}

func transactionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "invalid transaction ID", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func (h *Handler) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID  string         `json:"member_id"`
		ArticleID string         `json:"article_id"`
		Type      Type           `json:"type"`
		Date      lifecycle.Date `json:"date"`
	}

	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}

	txn, err := h.service.CreateTransaction(r.Context(), req.MemberID, req.ArticleID, req.Type, req.Date)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, txn)
}

func (h *Handler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	memberID := r.URL.Query().Get("member_id")
	if memberID == "" {
		http.Error(w, "missing member_id", http.StatusBadRequest)
		return
	}

	txns, err := h.service.ListTransactions(r.Context(), memberID)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, txns)
}

func (h *Handler) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	txn, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, txn)
}

func (h *Handler) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	txn, err := h.service.SubmitTransaction(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, txn)
}

func (h *Handler) handleCancelTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	txn, err := h.service.CancelTransaction(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, txn)
}

func (h *Handler) handleCheckIssueLimit(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	if err := h.service.CheckIssueLimit(r.Context(), id); err != nil {
		httpx.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
