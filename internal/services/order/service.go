package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"cosmic-coffee/internal/fault"
	"cosmic-coffee/internal/logger"
	"cosmic-coffee/internal/models"
	"cosmic-coffee/internal/storage"
)

// Deps are the collaborators of the order service. Locker and Events may be nil.
type Deps struct {
	Cart       CartClient
	Middleware MiddlewareClient
	Catalog    Catalog
	Store      Store
	Locker     Locker
	Events     Events
	Faults     *fault.Injector
}

// Options tune the order service.
type Options struct {
	OrderTTL time.Duration
	LeaseTTL time.Duration
	// StrictStatus enforces the status transition table. When false any
	// non-empty status is accepted.
	StrictStatus bool

	CreatePolicy    fault.Policy
	ListPolicy      fault.Policy
	CustomersPolicy fault.Policy
}

// Service turns carts into orders and serves order reads and status updates.
type Service struct {
	cart       CartClient
	middleware MiddlewareClient
	catalog    Catalog
	store      Store
	locker     Locker
	events     Events
	faults     *fault.Injector
	opts       Options
	logger     *logger.Logger

	now   func() time.Time
	newID func() string
}

func NewService(deps Deps, opts Options, log *logger.Logger) *Service {
	if opts.OrderTTL <= 0 {
		opts.OrderTTL = time.Hour
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 30 * time.Second
	}
	events := deps.Events
	if events == nil {
		events = NopEvents{}
	}

	return &Service{
		cart:       deps.Cart,
		middleware: deps.Middleware,
		catalog:    deps.Catalog,
		store:      deps.Store,
		locker:     deps.Locker,
		events:     events,
		faults:     deps.Faults,
		opts:       opts,
		logger:     log,
		now:        time.Now,
		newID:      shortID,
	}
}

// shortID is the first group of a random UUID: 8 hex characters.
func shortID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// CreateOrder prices and validates every line of the cart, then persists the
// order. Any rejection before the write leaves no order, no customer entry and
// an untouched cart. Registering the customer, clearing the cart and publishing
// the event afterwards are best effort.
func (s *Service) CreateOrder(ctx context.Context, req models.CreateOrderRequest, requestID string) (models.Order, error) {
	if err := req.Validate(); err != nil {
		return models.Order{}, invalidInput(err.Error())
	}
	// a client hanging up must not abort downstream calls halfway
	ctx = context.WithoutCancel(ctx)

	if err := s.faults.Apply(ctx, s.opts.CreatePolicy); err != nil {
		return models.Order{}, err
	}

	lease, err := s.claimCart(ctx, req.CartID)
	if err != nil {
		return models.Order{}, err
	}
	defer s.releaseCart(ctx, lease, requestID)

	cart, err := s.cart.GetCart(ctx, req.CartID)
	if err != nil {
		s.logger.Warn("cart_fetch_failed", "Failed to fetch cart", requestID, map[string]interface{}{
			"cart_id": req.CartID,
			"error":   err.Error(),
		})
		return models.Order{}, fmt.Errorf("%w: %v", ErrCartUnavailable, err)
	}
	if len(cart.Items) == 0 {
		return models.Order{}, ErrEmptyCart
	}

	menu, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to load catalog: %w", err)
	}

	items, total, err := s.priceItems(ctx, lease, req.CustomerName, cart.Items, menu, requestID)
	if err != nil {
		return models.Order{}, err
	}
	if err := lease.renew(ctx); err != nil {
		return models.Order{}, err
	}

	order := models.Order{
		ID:                  s.newID(),
		CustomerName:        req.CustomerName,
		Items:               items,
		SpecialInstructions: req.SpecialInstructions,
		TotalPrice:          total,
		Status:              models.StatusPending,
		Timestamp:           s.now().UTC(),
	}

	if err := s.store.Put(ctx, order, s.opts.OrderTTL); err != nil {
		return models.Order{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	// the order is committed from here on, later failures are only logged
	if err := s.store.RegisterCustomer(ctx, order.CustomerName); err != nil {
		s.logger.Error("customer_register_failed", "Order saved but customer could not be registered", requestID, err, map[string]interface{}{
			"order_id": order.ID,
			"customer": order.CustomerName,
		})
	}

	if err := s.cart.DeleteCart(ctx, req.CartID); err != nil {
		s.logger.Warn("cart_clear_failed", "Order saved but cart could not be cleared", requestID, map[string]interface{}{
			"order_id": order.ID,
			"cart_id":  req.CartID,
			"error":    err.Error(),
		})
	}
	if err := s.events.OrderCreated(ctx, order); err != nil {
		s.logger.Warn("event_publish_failed", "Failed to publish order.created", requestID, map[string]interface{}{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}

	s.logger.Info("order_created", "Order created", requestID, map[string]interface{}{
		"order_id":    order.ID,
		"customer":    order.CustomerName,
		"items":       len(order.Items),
		"total_price": order.TotalPrice,
	})
	return order, nil
}

// priceItems walks the cart in order and stops at the first rejected line. The
// lease is renewed before each line.
func (s *Service) priceItems(ctx context.Context, lease cartLease, customer string, lines []models.CartItem, menu map[string]models.MenuItem, requestID string) ([]models.OrderItem, float64, error) {
	items := make([]models.OrderItem, 0, len(lines))
	var total float64

	for _, line := range lines {
		if err := lease.renew(ctx); err != nil {
			return nil, 0, err
		}
		if _, ok := menu[line.ItemID]; !ok {
			return nil, 0, &ItemError{Kind: ErrUnknownItem, ItemID: line.ItemID, ItemName: line.ItemName}
		}

		validation := s.middleware.ValidateOrder(ctx, line.ItemID, line.Quantity, customer)
		if !validation.Valid {
			return nil, 0, &ItemError{Kind: ErrValidationFailed, ItemID: line.ItemID, ItemName: line.ItemName, Reason: validation.Error}
		}

		pricing := s.middleware.CalculatePrice(ctx, line.ItemID, line.Quantity, line.BasePrice)
		total += pricing.TotalPrice

		inventory := s.middleware.CheckInventory(ctx, line.ItemID, line.Quantity)
		if !inventory.Available {
			return nil, 0, &ItemError{Kind: ErrInsufficientInventory, ItemID: line.ItemID, ItemName: line.ItemName}
		}

		s.logger.Debug("item_priced", "Cart line priced", requestID, map[string]interface{}{
			"item_id":           line.ItemID,
			"quantity":          line.Quantity,
			"item_total":        pricing.TotalPrice,
			"pricing_source":    pricing.Source,
			"validation_source": validation.Source,
			"inventory_source":  inventory.Source,
		})

		items = append(items, models.OrderItem{
			ItemID:      line.ItemID,
			ItemName:    line.ItemName,
			ItemEmoji:   line.ItemEmoji,
			Quantity:    line.Quantity,
			BasePrice:   line.BasePrice,
			ItemTotal:   pricing.TotalPrice,
			PriceSource: pricing.Source,
		})
	}
	return items, total, nil
}

// cartLease is the checkout claim on one cart. A zero claim means no Locker is
// configured and every call is a no-op.
type cartLease struct {
	cartID string
	ttl    time.Duration
	claim  storage.Claim
}

// claimCart takes the checkout lease on a cart.
func (s *Service) claimCart(ctx context.Context, cartID string) (cartLease, error) {
	lease := cartLease{cartID: cartID, ttl: s.opts.LeaseTTL}
	if s.locker == nil {
		return lease, nil
	}

	claim, err := s.locker.Acquire(ctx, "cart:"+cartID, s.opts.LeaseTTL)
	if errors.Is(err, storage.ErrLeaseHeld) {
		return cartLease{}, ErrCartBusy
	}
	if err != nil {
		return cartLease{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	lease.claim = claim
	return lease, nil
}

// renew pushes the lease expiry out by another TTL. A lease that expired and
// may have passed to another checkout yields ErrCartBusy.
func (l cartLease) renew(ctx context.Context) error {
	if l.claim == nil {
		return nil
	}
	err := l.claim.Extend(ctx, l.ttl)
	if errors.Is(err, storage.ErrLeaseLost) {
		return fmt.Errorf("%w: checkout lease on cart %s expired", ErrCartBusy, l.cartID)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Service) releaseCart(ctx context.Context, lease cartLease, requestID string) {
	if lease.claim == nil {
		return
	}
	if err := lease.claim.Release(ctx); err != nil {
		s.logger.Warn("lease_release_failed", "Failed to release cart lease", requestID, map[string]interface{}{
			"cart_id": lease.cartID,
			"error":   err.Error(),
		})
	}
}

// GetOrder returns a live order. Expired and unknown ids both yield ErrNotFound.
func (s *Service) GetOrder(ctx context.Context, id string) (models.Order, error) {
	if strings.TrimSpace(id) == "" {
		return models.Order{}, invalidInput("order id is required")
	}

	order, err := s.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Order{}, ErrNotFound
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return order, nil
}

// ListOrders returns all live orders, newest first.
func (s *Service) ListOrders(ctx context.Context) ([]models.Order, error) {
	if err := s.faults.Apply(ctx, s.opts.ListPolicy); err != nil {
		return nil, err
	}
	return s.listSorted(ctx, func(models.Order) bool { return true })
}

// ListOrdersForCustomer returns the live orders placed under exactly this name, newest first.
func (s *Service) ListOrdersForCustomer(ctx context.Context, customerName string) ([]models.Order, error) {
	return s.listSorted(ctx, func(o models.Order) bool { return o.CustomerName == customerName })
}

func (s *Service) listSorted(ctx context.Context, keep func(models.Order) bool) ([]models.Order, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	orders := make([]models.Order, 0, len(all))
	for _, o := range all {
		if keep(o) {
			orders = append(orders, o)
		}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].Timestamp.After(orders[j].Timestamp)
	})
	return orders, nil
}

// ListCustomers returns every customer who ever ordered, sorted by name.
func (s *Service) ListCustomers(ctx context.Context) ([]string, error) {
	if err := s.faults.Apply(ctx, s.opts.CustomersPolicy); err != nil {
		return nil, err
	}

	names, err := s.store.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	sort.Strings(names)
	return names, nil
}

// UpdateStatus sets a new status, stamps updatedAt and re-saves the order with a
// fresh TTL. changedBy is recorded in the status notification.
func (s *Service) UpdateStatus(ctx context.Context, id, status, changedBy, requestID string) (models.Order, error) {
	raw := strings.TrimSpace(status)
	if raw == "" {
		return models.Order{}, invalidInput("status is required")
	}

	next := models.OrderStatus(raw)
	if s.opts.StrictStatus {
		parsed, ok := models.ParseStatus(raw)
		if !ok {
			return models.Order{}, invalidInput(fmt.Sprintf("unknown status %q", raw))
		}
		next = parsed
	}

	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return models.Order{}, err
	}

	previous := order.Status
	if s.opts.StrictStatus && !previous.CanTransitionTo(next) {
		return models.Order{}, fmt.Errorf("%w: cannot move order from %s to %s", ErrInvalidTransition, previous, next)
	}

	now := s.now().UTC()
	order.Status = next
	order.UpdatedAt = &now

	if err := s.store.Put(ctx, order, s.opts.OrderTTL); err != nil {
		return models.Order{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	msg := models.CreateStatusUpdateMessage(order.ID, previous, next, changedBy, now)
	if err := s.events.StatusChanged(ctx, msg); err != nil {
		s.logger.Warn("event_publish_failed", "Failed to publish status change", requestID, map[string]interface{}{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}

	s.logger.Info("order_status_updated", "Order status updated", requestID, map[string]interface{}{
		"order_id":   order.ID,
		"old_status": previous,
		"new_status": next,
	})
	return order, nil
}

// HealthCheck reports whether the order store answers.
func (s *Service) HealthCheck(ctx context.Context) bool {
	return s.store.Ping(ctx) == nil
}
