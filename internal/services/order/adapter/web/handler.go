package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cosmic-coffee/internal/logger"
	"cosmic-coffee/internal/models"
	"cosmic-coffee/internal/server"
	"cosmic-coffee/internal/services/order"
)

// changedBy is recorded on status notifications raised through the HTTP API.
const changedBy = "api"

// OrderHandler exposes the order service over HTTP.
type OrderHandler struct {
	service *order.Service
	logger  *logger.Logger
}

func NewOrderHandler(service *order.Service, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  log,
	}
}

// Routes registers the order and customer endpoints on r.
func (h *OrderHandler) Routes(r chi.Router) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Get("/", h.ListOrders)
		r.Post("/", h.CreateOrder)
		r.Get("/{id}", h.GetOrder)
		r.Patch("/{id}", h.UpdateStatus)
	})
	r.Get("/api/customers", h.ListCustomers)
	r.Get("/api/customers/{name}/orders", h.ListCustomerOrders)
}

func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r)

	var req models.CreateOrderRequest
	if err := server.DecodeJSON(w, r, &req); err != nil {
		h.logger.Warn("validation_failed", "Failed to decode request body", requestID, map[string]interface{}{
			"error": err.Error(),
		})
		server.WriteError(w, http.StatusBadRequest, "Invalid request body", requestID)
		return
	}

	created, err := h.service.CreateOrder(r.Context(), req, requestID)
	if err != nil {
		h.fail(w, "order_create_failed", "Failed to create order", requestID, err)
		return
	}
	server.WriteJSON(w, http.StatusCreated, created)
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r)

	o, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "order_fetch_failed", "Failed to fetch order", requestID, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r)

	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		h.fail(w, "orders_fetch_failed", "Failed to fetch orders", requestID, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r)

	var req models.UpdateStatusRequest
	if err := server.DecodeJSON(w, r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "Invalid request body", requestID)
		return
	}

	updated, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status, changedBy, requestID)
	if err != nil {
		h.fail(w, "order_update_failed", "Failed to update order", requestID, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, updated)
}

func (h *OrderHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r)

	names, err := h.service.ListCustomers(r.Context())
	if err != nil {
		h.fail(w, "customers_fetch_failed", "Failed to fetch customers", requestID, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, names)
}

func (h *OrderHandler) ListCustomerOrders(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r)

	orders, err := h.service.ListOrdersForCustomer(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, "customer_orders_fetch_failed", "Failed to fetch customer orders", requestID, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, orders)
}

// fail logs err and writes it with the status its class maps to. Server-side
// failures, injected ones included, get the generic message.
func (h *OrderHandler) fail(w http.ResponseWriter, action, generic, requestID string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.Error(action, generic, requestID, err, nil)
		server.WriteError(w, code, generic, requestID)
		return
	}

	h.logger.Warn(action, generic, requestID, map[string]interface{}{
		"error":  err.Error(),
		"status": code,
	})
	server.WriteError(w, code, err.Error(), requestID)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, order.ErrInvalidInput),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrValidationFailed),
		errors.Is(err, order.ErrInsufficientInventory):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrCartUnavailable),
		errors.Is(err, order.ErrUnknownItem),
		errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrCartBusy),
		errors.Is(err, order.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
