package menu

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cosmic-coffee/internal/logger"
	"cosmic-coffee/internal/server"
)

// Handler handles HTTP requests for the menu
type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// Routes registers the menu endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/menu", h.List)
	r.Get("/api/menu/{id}", h.Get)
}

// List handles GET /api/menu
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r)

	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("menu_fetch_failed", "Failed to fetch menu", requestID, err, nil)
		server.WriteError(w, http.StatusInternalServerError, "Failed to fetch menu", requestID)
		return
	}
	server.WriteJSON(w, http.StatusOK, items)
}

// Get handles GET /api/menu/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r)

	item, err := h.service.Get(chi.URLParam(r, "id"))
	if errors.Is(err, ErrItemNotFound) {
		server.WriteError(w, http.StatusNotFound, "Menu item not found", requestID)
		return
	}
	server.WriteJSON(w, http.StatusOK, item)
}
