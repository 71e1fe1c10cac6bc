package middleware

import "cosmic-coffee/internal/models"

const (
	maxQuantity         = 10
	flakyValidationRate = 0.02
)

// Validate checks one order line. flakeDraw is a uniform draw in [0, 1); values
// below the flaky rate reject an otherwise valid line.
func Validate(req models.ValidateRequest, flakeDraw float64) models.ValidationResult {
	reject := func(reason string) models.ValidationResult {
		return models.ValidationResult{Valid: false, Error: reason}
	}

	switch {
	case req.CustomerName == "":
		return reject("Customer name is required")
	case req.ItemID == "":
		return reject("Item ID is required")
	case req.Quantity <= 0:
		return reject("Quantity must be greater than 0")
	case req.Quantity > maxQuantity:
		return reject("Quantity cannot exceed 10 items")
	case flakeDraw < flakyValidationRate:
		return reject("Validation temporarily unavailable")
	}

	return models.ValidationResult{Valid: true, Message: "Order validation successful"}
}
