// Package middleware is the validation, pricing and inventory service the
// storefront consults for every order line.
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cosmic-coffee/internal/fault"
	"cosmic-coffee/internal/logger"
	"cosmic-coffee/internal/models"
	"cosmic-coffee/internal/server"
)

// Latency bounds of each endpoint.
var (
	requestLatency   = [2]time.Duration{10 * time.Millisecond, 100 * time.Millisecond}
	validateLatency  = [2]time.Duration{20 * time.Millisecond, 100 * time.Millisecond}
	priceLatency     = [2]time.Duration{30 * time.Millisecond, 100 * time.Millisecond}
	inventoryLatency = [2]time.Duration{20 * time.Millisecond, 80 * time.Millisecond}
)

type Handler struct {
	inventory *Inventory
	rng       *fault.Injector
	now       func() time.Time
	logger    *logger.Logger
}

func NewHandler(inventory *Inventory, rng *fault.Injector, log *logger.Logger) *Handler {
	return &Handler{
		inventory: inventory,
		rng:       rng,
		now:       time.Now,
		logger:    log,
	}
}

// Routes registers the middleware endpoints on r behind the latency simulator.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", server.HealthHandler("middleware", nil))
	r.Group(func(r chi.Router) {
		r.Use(h.simulateLatency)
		r.Post("/validate", h.Validate)
		r.Post("/calculate-price", h.CalculatePrice)
		r.Post("/check-inventory", h.CheckInventory)
	})
}

func (h *Handler) simulateLatency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.pause(r, requestLatency); err != nil {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// pause waits a random time within bounds; it fails only if the client went away.
func (h *Handler) pause(r *http.Request, bounds [2]time.Duration) error {
	return h.rng.Delay(r.Context(), bounds[0], bounds[1])
}

// Validate handles POST /validate
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r)

	var req models.ValidateRequest
	if err := server.DecodeJSON(w, r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "Invalid request body", requestID)
		return
	}
	if err := h.pause(r, validateLatency); err != nil {
		return
	}

	result := Validate(req, h.rng.Float64())
	if !result.Valid {
		h.logger.Info("validation_rejected", "Order line rejected", requestID, map[string]interface{}{
			"item_id": req.ItemID,
			"reason":  result.Error,
		})
	}
	server.WriteJSON(w, http.StatusOK, result)
}

// CalculatePrice handles POST /calculate-price
func (h *Handler) CalculatePrice(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r)

	var req models.PriceRequest
	if err := server.DecodeJSON(w, r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "Invalid request body", requestID)
		return
	}
	if err := h.pause(r, priceLatency); err != nil {
		return
	}

	result, err := Quote(req, h.now(), h.rng.Float64())
	if err != nil {
		server.WriteError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}
	server.WriteJSON(w, http.StatusOK, result)
}

// CheckInventory handles POST /check-inventory
func (h *Handler) CheckInventory(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r)

	var req models.InventoryRequest
	if err := server.DecodeJSON(w, r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "Invalid request body", requestID)
		return
	}
	if err := h.pause(r, inventoryLatency); err != nil {
		return
	}

	switch {
	case req.ItemID == "":
		server.WriteError(w, http.StatusBadRequest, "Item ID is required", requestID)
		return
	case req.Quantity <= 0:
		server.WriteError(w, http.StatusBadRequest, "Quantity must be greater than 0", requestID)
		return
	}

	server.WriteJSON(w, http.StatusOK, h.inventory.Check(r.Context(), req))
}
