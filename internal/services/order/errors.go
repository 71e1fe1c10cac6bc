package order

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrCartUnavailable       = errors.New("cart not found or cart service unavailable")
	ErrEmptyCart             = errors.New("cart is empty")
	ErrUnknownItem           = errors.New("menu item not found")
	ErrValidationFailed      = errors.New("validation failed")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrNotFound              = errors.New("order not found")
	ErrStoreUnavailable      = errors.New("order store unavailable")
	ErrCartBusy              = errors.New("cart is already being checked out")
	ErrInvalidTransition     = errors.New("invalid status transition")
)

// ItemError rejects an order because of one cart line. Kind is one of
// ErrUnknownItem, ErrValidationFailed or ErrInsufficientInventory.
type ItemError struct {
	Kind     error
	ItemID   string
	ItemName string
	Reason   string
}

func (e *ItemError) Error() string {
	name := e.ItemName
	if name == "" {
		name = e.ItemID
	}
	switch e.Kind {
	case ErrUnknownItem:
		return fmt.Sprintf("Menu item not found: %s", e.ItemID)
	case ErrValidationFailed:
		return fmt.Sprintf("Validation failed for %s: %s", name, e.Reason)
	case ErrInsufficientInventory:
		return fmt.Sprintf("Insufficient inventory for %s", name)
	default:
		return fmt.Sprintf("%v: %s", e.Kind, name)
	}
}

func (e *ItemError) Unwrap() error {
	return e.Kind
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
