// internal/catalog/handler.go
package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"libradesk/internal/httpx"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/articles", func(r chi.Router) {
		r.Post("/", h.handleAddArticle)
		r.Get("/", h.handleListArticles)
		r.Get("/search", h.handleSearch)
		r.Get("/{id}", h.handleGetArticle)
		r.Get("/{id}/history", h.handleHistory)
	})
}

func articleID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "invalid article ID", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func (h *Handler) handleAddArticle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		Author    string `json:"author"`
		ISBN      string `json:"isbn"`
		Publisher string `json:"publisher"`
	}

	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}

	article, err := h.service.AddArticle(r.Context(), req.Name, req.Author, req.ISBN, req.Publisher)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, article)
}

func (h *Handler) handleListArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := h.service.ListArticles(r.Context(), Availability(r.URL.Query().Get("status")))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, articles)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	articles, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, articles)
}

func (h *Handler) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(w, r)
	if !ok {
		return
	}

	article, err := h.service.GetArticle(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, article)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(w, r)
	if !ok {
		return
	}

	events, err := h.service.History(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, events)
}
