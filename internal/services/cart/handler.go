package cart

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cosmic-coffee/internal/fault"
	"cosmic-coffee/internal/logger"
	"cosmic-coffee/internal/models"
	"cosmic-coffee/internal/server"
)

// ChaosCode marks a 503 produced by the add-item chaos policy.
const ChaosCode = "CHAOS"

var (
	getLatency = [2]time.Duration{20 * time.Millisecond, 70 * time.Millisecond}
	addLatency = [2]time.Duration{50 * time.Millisecond, 150 * time.Millisecond}
)

type Handler struct {
	store  *Store
	faults *fault.Injector
	chaos  fault.Policy
	logger *logger.Logger
}

// NewHandler serves carts from store. chaos is applied to add-item requests.
func NewHandler(store *Store, faults *fault.Injector, chaos fault.Policy, log *logger.Logger) *Handler {
	return &Handler{store: store, faults: faults, chaos: chaos, logger: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", server.HealthHandler("cart", func(r *http.Request) bool {
		return h.store.Ping(r.Context()) == nil
	}))
	r.Post("/cart", h.Create)
	r.Route("/cart/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Clear)
		r.Post("/items", h.AddItem)
		r.Patch("/items/{itemId}", h.UpdateItem)
		r.Delete("/items/{itemId}", h.RemoveItem)
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r)

	c, err := h.store.Create(r.Context())
	if err != nil {
		h.logger.Error("cart_create_failed", "Failed to create cart", requestID, err, nil)
		server.WriteError(w, http.StatusInternalServerError, "Failed to create cart", requestID)
		return
	}
	h.logger.Info("cart_created", "Cart created", requestID, map[string]interface{}{"cart_id": c.ID})
	server.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r)
	if err := h.faults.Delay(r.Context(), getLatency[0], getLatency[1]); err != nil {
		return
	}

	c, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "cart_fetch_failed", "Failed to fetch cart", requestID, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r)
	cartID := chi.URLParam(r, "id")

	if err := h.faults.Trip(r.Context(), h.chaos); err != nil {
		if !errors.Is(err, fault.ErrSyntheticFault) {
			return
		}
		h.logger.Warn("cart_chaos", "Chaos policy failed add-item request", requestID, map[string]interface{}{
			"cart_id": cartID,
		})
		server.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error":      h.chaosMessage(),
			"code":       ChaosCode,
			"retryAfter": h.chaos.MaxLatency.Milliseconds(),
		})
		return
	}

	var req models.AddItemRequest
	if err := server.DecodeJSON(w, r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "Invalid request body", requestID)
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if req.ItemID == "" || quantity <= 0 {
		server.WriteError(w, http.StatusBadRequest, "itemId and quantity are required", requestID)
		return
	}

	if err := h.faults.Delay(r.Context(), addLatency[0], addLatency[1]); err != nil {
		return
	}

	item := models.CartItem{
		ItemID:    req.ItemID,
		ItemName:  req.ItemName,
		ItemEmoji: req.ItemEmoji,
		Quantity:  quantity,
		BasePrice: req.BasePrice,
		AddedAt:   time.Now().UTC(),
	}
	c, err := h.store.Update(r.Context(), cartID, func(c *models.Cart) error {
		AddItem(c, item)
		return nil
	})
	if err != nil {
		h.fail(w, "cart_add_item_failed", "Failed to add item to cart", requestID, err)
		return
	}

	h.logger.Info("cart_item_added", "Item added to cart", requestID, map[string]interface{}{
		"cart_id":  cartID,
		"item_id":  item.ItemID,
		"quantity": quantity,
	})
	server.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r)

	var req models.UpdateItemRequest
	if err := server.DecodeJSON(w, r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "Invalid request body", requestID)
		return
	}
	if req.Quantity == nil {
		server.WriteError(w, http.StatusBadRequest, "quantity is required", requestID)
		return
	}

	itemID := chi.URLParam(r, "itemId")
	c, err := h.store.Update(r.Context(), chi.URLParam(r, "id"), func(c *models.Cart) error {
		return SetQuantity(c, itemID, *req.Quantity)
	})
	if err != nil {
		h.fail(w, "cart_update_item_failed", "Failed to update cart item", requestID, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r)

	itemID := chi.URLParam(r, "itemId")
	c, err := h.store.Update(r.Context(), chi.URLParam(r, "id"), func(c *models.Cart) error {
		RemoveItem(c, itemID)
		return nil
	})
	if err != nil {
		h.fail(w, "cart_remove_item_failed", "Failed to remove cart item", requestID, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	requestID := server.RequestID(r)
	cartID := chi.URLParam(r, "id")

	if err := h.store.Delete(r.Context(), cartID); err != nil {
		h.fail(w, "cart_clear_failed", "Failed to clear cart", requestID, err)
		return
	}
	h.logger.Info("cart_cleared", "Cart cleared", requestID, map[string]interface{}{"cart_id": cartID})
	server.WriteJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared successfully"})
}

func (h *Handler) fail(w http.ResponseWriter, action, generic, requestID string, err error) {
	switch {
	case errors.Is(err, ErrCartNotFound), errors.Is(err, ErrItemNotFound):
		server.WriteError(w, http.StatusNotFound, err.Error(), requestID)
	case errors.Is(err, ErrContention):
		server.WriteError(w, http.StatusConflict, err.Error(), requestID)
	default:
		h.logger.Error(action, generic, requestID, err, nil)
		server.WriteError(w, http.StatusInternalServerError, generic, requestID)
	}
}

func (h *Handler) chaosMessage() string {
	if h.chaos.Message != "" {
		return h.chaos.Message
	}
	return "cart service temporarily unavailable"
}
