package middleware

import (
	"errors"
	"math"
	"time"

	"cosmic-coffee/internal/models"
)

var (
	ErrInvalidBasePrice = errors.New("Base price must be greater than 0")
	ErrInvalidQuantity  = errors.New("Quantity must be greater than 0")
)

const (
	rushHourMultiplier = 1.1
	offPeakDiscount    = 0.15
	bulkDiscount       = 0.1
	bulkQuantity       = 5
	surgeMultiplier    = 1.2
	surgeChance        = 0.1
)

// Quote prices quantity units of an item at the given hour. surgeDraw is a
// uniform draw in [0, 1); values below the surge chance apply surge pricing.
func Quote(req models.PriceRequest, at time.Time, surgeDraw float64) (models.PricingResult, error) {
	if req.BasePrice <= 0 {
		return models.PricingResult{}, ErrInvalidBasePrice
	}
	if req.Quantity <= 0 {
		return models.PricingResult{}, ErrInvalidQuantity
	}

	total := req.BasePrice * float64(req.Quantity)
	multiplier := 1.0
	discount := 0.0

	hour := at.Hour()
	if (hour >= 7 && hour < 9) || (hour >= 12 && hour < 13) {
		multiplier = rushHourMultiplier
	}

	// off-peak discount replaces the rush multiplier
	if hour >= 14 && hour < 16 {
		discount = offPeakDiscount
		total *= 1 - discount
	} else {
		total *= multiplier
	}

	if req.Quantity >= bulkQuantity {
		total *= 1 - bulkDiscount
		if discount == 0 {
			discount = bulkDiscount
		}
	}

	if surgeDraw < surgeChance {
		total *= surgeMultiplier
		multiplier *= surgeMultiplier
	}

	return models.PricingResult{
		TotalPrice:      math.Round(total*100) / 100,
		BasePrice:       req.BasePrice,
		Quantity:        req.Quantity,
		Discount:        discount,
		PriceMultiplier: multiplier,
		Message:         "Price calculated successfully",
	}, nil
}
