package models

// Source tells whether a result came from the middleware service or was a local fallback.
type Source string

const (
	SourceMiddleware Source = "middleware"
	SourceFallback   Source = "fallback"
)

type ValidateRequest struct {
	ItemID       string `json:"itemId"`
	Quantity     int    `json:"quantity"`
	CustomerName string `json:"customerName"`
}

type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Source  Source `json:"-"`
}

type PriceRequest struct {
	ItemID    string  `json:"itemId"`
	Quantity  int     `json:"quantity"`
	BasePrice float64 `json:"basePrice"`
}

type PricingResult struct {
	TotalPrice      float64 `json:"totalPrice"`
	BasePrice       float64 `json:"basePrice"`
	Quantity        int     `json:"quantity"`
	Discount        float64 `json:"discount,omitempty"`
	PriceMultiplier float64 `json:"priceMultiplier,omitempty"`
	Message         string  `json:"message,omitempty"`
	Source          Source  `json:"-"`
}

type InventoryRequest struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type InventoryResult struct {
	Available       bool   `json:"available"`
	CurrentStock    int    `json:"currentStock"`
	RequestedAmount int    `json:"requestedAmount"`
	Message         string `json:"message,omitempty"`
	Source          Source `json:"-"`
}
