package models

import "time"

const (
	OrdersExchange        = "orders_topic"
	NotificationsExchange = "notifications_fanout"
	NotificationsQueue    = "notifications_queue"

	RoutingKeyOrderCreated = "order.created"
)

// OrderCreatedMessage is published on the orders topic after an order is committed.
type OrderCreatedMessage struct {
	OrderID      string    `json:"orderId"`
	CustomerName string    `json:"customerName"`
	ItemCount    int       `json:"itemCount"`
	TotalPrice   float64   `json:"totalPrice"`
	Timestamp    time.Time `json:"timestamp"`
}

// StatusUpdateMessage represents a status update notification
type StatusUpdateMessage struct {
	OrderID   string    `json:"orderId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
	ChangedBy string    `json:"changedBy"`
	Timestamp time.Time `json:"timestamp"`
}

// NewOrderCreatedMessage builds the event body for a committed order.
func NewOrderCreatedMessage(order Order) OrderCreatedMessage {
	count := 0
	for _, item := range order.Items {
		count += item.Quantity
	}
	return OrderCreatedMessage{
		OrderID:      order.ID,
		CustomerName: order.CustomerName,
		ItemCount:    count,
		TotalPrice:   order.TotalPrice,
		Timestamp:    order.Timestamp,
	}
}

// CreateStatusUpdateMessage creates a StatusUpdateMessage for order status changes
func CreateStatusUpdateMessage(orderID string, oldStatus, newStatus OrderStatus, changedBy string, at time.Time) StatusUpdateMessage {
	return StatusUpdateMessage{
		OrderID:   orderID,
		OldStatus: string(oldStatus),
		NewStatus: string(newStatus),
		ChangedBy: changedBy,
		Timestamp: at.UTC(),
	}
}
