package models

// MenuItem is a catalog entry.
type MenuItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Emoji       string  `json:"emoji"`
	BasePrice   float64 `json:"basePrice"`
	InStock     bool    `json:"inStock"`
}
