package models

import "time"

// CartItem is a line in a cart. BasePrice is the price seen when the item was added.
type CartItem struct {
	ItemID    string    `json:"itemId"`
	ItemName  string    `json:"itemName"`
	ItemEmoji string    `json:"itemEmoji"`
	Quantity  int       `json:"quantity"`
	BasePrice float64   `json:"basePrice"`
	AddedAt   time.Time `json:"addedAt"`
}

type Cart struct {
	ID        string     `json:"id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// AddItemRequest is the body of POST /cart/{id}/items. Quantity defaults to 1.
type AddItemRequest struct {
	ItemID    string  `json:"itemId"`
	ItemName  string  `json:"itemName"`
	ItemEmoji string  `json:"itemEmoji"`
	Quantity  *int    `json:"quantity"`
	BasePrice float64 `json:"basePrice"`
}

// UpdateItemRequest is the body of PATCH /cart/{id}/items/{itemId}.
type UpdateItemRequest struct {
	Quantity *int `json:"quantity"`
}
