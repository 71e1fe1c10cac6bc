package models

import (
	"errors"
	"strings"
	"time"
)

// OrderStatus is the lifecycle stage of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// transitions lists the statuses reachable from each known status.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusConfirmed, StatusPreparing, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusCompleted},
	StatusCompleted: nil,
	StatusCancelled: nil,
}

// ParseStatus returns the known status named s.
func ParseStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	_, ok := transitions[st]
	return st, ok
}

// Known reports whether s is one of the defined statuses.
func (s OrderStatus) Known() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no further transition is possible from s.
func (s OrderStatus) IsTerminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether an order in status s may move to next.
// Staying in the same status is always allowed. An order whose current status
// is not a known one (written before statuses were enforced) may move to any
// known status.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.Known() {
		return false
	}
	if s == next || !s.Known() {
		return true
	}
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// OrderItem is one priced line of an order.
type OrderItem struct {
	ItemID      string  `json:"itemId"`
	ItemName    string  `json:"itemName"`
	ItemEmoji   string  `json:"itemEmoji"`
	Quantity    int     `json:"quantity"`
	BasePrice   float64 `json:"basePrice"`
	ItemTotal   float64 `json:"itemTotal"`
	PriceSource Source  `json:"priceSource,omitempty"`
}

// Order is a placed order as persisted by the order store.
type Order struct {
	ID                  string      `json:"id"`
	CustomerName        string      `json:"customerName"`
	Items               []OrderItem `json:"items"`
	SpecialInstructions string      `json:"specialInstructions"`
	TotalPrice          float64     `json:"totalPrice"`
	Status              OrderStatus `json:"status"`
	Timestamp           time.Time   `json:"timestamp"`
	UpdatedAt           *time.Time  `json:"updatedAt,omitempty"`
}

// CreateOrderRequest is the body of POST /api/orders.
type CreateOrderRequest struct {
	CustomerName        string `json:"customerName"`
	CartID              string `json:"cartId"`
	SpecialInstructions string `json:"specialInstructions"`
}

// Validate checks the required fields.
func (req *CreateOrderRequest) Validate() error {
	if strings.TrimSpace(req.CustomerName) == "" || strings.TrimSpace(req.CartID) == "" {
		return errors.New("missing required fields: customerName and cartId")
	}
	return nil
}

// UpdateStatusRequest is the body of PATCH /api/orders/{id}.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}
