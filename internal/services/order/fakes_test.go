package order

import (
	"context"
	"errors"
	"sync"
	"time"

	"cosmic-coffee/internal/models"
	"cosmic-coffee/internal/storage"
)

type fakeCart struct {
	mu        sync.Mutex
	carts     map[string]models.Cart
	getErr    error
	deleteErr error
	deleted   []string
	onGet     func()
}

func newFakeCart(carts ...models.Cart) *fakeCart {
	f := &fakeCart{carts: map[string]models.Cart{}}
	for _, c := range carts {
		f.carts[c.ID] = c
	}
	return f
}

func (f *fakeCart) GetCart(_ context.Context, id string) (models.Cart, error) {
	if f.onGet != nil {
		f.onGet()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return models.Cart{}, f.getErr
	}
	c, ok := f.carts[id]
	if !ok {
		return models.Cart{}, errors.New("cart not found")
	}
	return c, nil
}

func (f *fakeCart) DeleteCart(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.carts, id)
	f.deleted = append(f.deleted, id)
	return nil
}

// fakeMiddleware answers like a healthy middleware unless told otherwise per item.
type fakeMiddleware struct {
	mu          sync.Mutex
	invalid     map[string]string
	outOfStock  map[string]bool
	prices      map[string]float64
	unreachable bool
	calls       []string
	onValidate  func(itemID string)
}

func newFakeMiddleware() *fakeMiddleware {
	return &fakeMiddleware{invalid: map[string]string{}, outOfStock: map[string]bool{}, prices: map[string]float64{}}
}

func (f *fakeMiddleware) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeMiddleware) ValidateOrder(_ context.Context, itemID string, _ int, _ string) models.ValidationResult {
	f.record("validate:" + itemID)
	if f.onValidate != nil {
		f.onValidate(itemID)
	}
	if f.unreachable {
		return models.ValidationResult{Valid: true, Source: models.SourceFallback}
	}
	if reason, ok := f.invalid[itemID]; ok {
		return models.ValidationResult{Valid: false, Error: reason, Source: models.SourceMiddleware}
	}
	return models.ValidationResult{Valid: true, Source: models.SourceMiddleware}
}

func (f *fakeMiddleware) CalculatePrice(_ context.Context, itemID string, quantity int, basePrice float64) models.PricingResult {
	f.record("price:" + itemID)
	if f.unreachable {
		return models.PricingResult{TotalPrice: basePrice * float64(quantity), Source: models.SourceFallback}
	}
	if p, ok := f.prices[itemID]; ok {
		return models.PricingResult{TotalPrice: p, Source: models.SourceMiddleware}
	}
	return models.PricingResult{TotalPrice: basePrice * float64(quantity), Source: models.SourceMiddleware}
}

func (f *fakeMiddleware) CheckInventory(_ context.Context, itemID string, _ int) models.InventoryResult {
	f.record("inventory:" + itemID)
	if f.unreachable {
		return models.InventoryResult{Available: true, Source: models.SourceFallback}
	}
	return models.InventoryResult{Available: !f.outOfStock[itemID], Source: models.SourceMiddleware}
}

type fakeCatalog struct {
	items map[string]models.MenuItem
	err   error
}

func (f fakeCatalog) Snapshot(context.Context) (map[string]models.MenuItem, error) {
	return f.items, f.err
}

type memStore struct {
	mu          sync.Mutex
	orders      map[string]models.Order
	ttls        map[string]time.Duration
	customers   map[string]bool
	putErr      error
	customerErr error
	listErr     error
	pingErr     error
}

func newMemStore() *memStore {
	return &memStore{orders: map[string]models.Order{}, ttls: map[string]time.Duration{}, customers: map[string]bool{}}
}

func (m *memStore) Put(_ context.Context, o models.Order, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.orders[o.ID] = o
	m.ttls[o.ID] = ttl
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return models.Order{}, storage.ErrNotFound
	}
	return o, nil
}

func (m *memStore) ListAll(context.Context) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.Order
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *memStore) RegisterCustomer(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.customerErr != nil {
		return m.customerErr
	}
	m.customers[name] = true
	return nil
}

func (m *memStore) ListCustomers(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for name := range m.customers {
		out = append(out, name)
	}
	return out, nil
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type memLocker struct {
	mu        sync.Mutex
	held      map[string]bool
	released  []string
	renewals  int
	onAcquire func()
}

func newMemLocker() *memLocker { return &memLocker{held: map[string]bool{}} }

func (l *memLocker) Acquire(_ context.Context, name string, _ time.Duration) (storage.Claim, error) {
	if l.onAcquire != nil {
		defer l.onAcquire()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return nil, storage.ErrLeaseHeld
	}
	l.held[name] = true
	return &memClaim{locker: l, name: name}, nil
}

// expire drops a lease as if its TTL ran out.
func (l *memLocker) expire(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
}

type memClaim struct {
	locker *memLocker
	name   string
}

func (c *memClaim) Extend(context.Context, time.Duration) error {
	c.locker.mu.Lock()
	defer c.locker.mu.Unlock()
	if !c.locker.held[c.name] {
		return storage.ErrLeaseLost
	}
	c.locker.renewals++
	return nil
}

func (c *memClaim) Release(context.Context) error {
	c.locker.mu.Lock()
	defer c.locker.mu.Unlock()
	delete(c.locker.held, c.name)
	c.locker.released = append(c.locker.released, c.name)
	return nil
}

type recordingEvents struct {
	mu      sync.Mutex
	created []models.Order
	changes []models.StatusUpdateMessage
	err     error
}

func (r *recordingEvents) OrderCreated(_ context.Context, o models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, o)
	return r.err
}

func (r *recordingEvents) StatusChanged(_ context.Context, m models.StatusUpdateMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, m)
	return r.err
}
