package menu

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"cosmic-coffee/internal/fault"
	"cosmic-coffee/internal/logger"
	"cosmic-coffee/internal/models"
)

const cacheKey = "menu:items"

// ErrItemNotFound is returned by Get for an unknown id.
var ErrItemNotFound = errors.New("menu item not found")

var cosmicMenu = []models.MenuItem{
	{ID: "nebula-latte", Name: "Nebula Latte", Description: "A swirling mix of espresso and steamed milk with cosmic purple foam", Emoji: "🌌", BasePrice: 5.99, InStock: true},
	{ID: "supernova-espresso", Name: "Supernova Espresso", Description: "An explosive shot of pure energy to kickstart your day", Emoji: "💥", BasePrice: 3.99, InStock: true},
	{ID: "galaxy-mocha", Name: "Galaxy Mocha", Description: "Rich chocolate and espresso swirled like distant galaxies", Emoji: "🌠", BasePrice: 6.49, InStock: true},
	{ID: "asteroid-americano", Name: "Asteroid Americano", Description: "Bold and strong, like a rock hurtling through space", Emoji: "☄️", BasePrice: 4.49, InStock: true},
	{ID: "lunar-cappuccino", Name: "Lunar Cappuccino", Description: "Smooth and creamy with a moon-white foam", Emoji: "🌙", BasePrice: 5.49, InStock: true},
	{ID: "starlight-frappe", Name: "Starlight Frappé", Description: "Iced perfection with a shimmer of stardust", Emoji: "✨", BasePrice: 6.99, InStock: true},
	{ID: "comet-cold-brew", Name: "Comet Cold Brew", Description: "Smooth cold brew with a tail of vanilla cream", Emoji: "☄️", BasePrice: 5.29, InStock: true},
	{ID: "rocket-fuel", Name: "Rocket Fuel", Description: "Triple shot espresso for maximum lift-off", Emoji: "🚀", BasePrice: 4.99, InStock: true},
}

// Items returns a copy of the static catalog.
func Items() []models.MenuItem {
	return append([]models.MenuItem(nil), cosmicMenu...)
}

// ItemIDs returns the ids of the static catalog in menu order.
func ItemIDs() []string {
	ids := make([]string, len(cosmicMenu))
	for i, item := range cosmicMenu {
		ids[i] = item.ID
	}
	return ids
}

// Service serves the catalog, caching the list in Redis.
type Service struct {
	cache    *redis.Client
	cacheTTL time.Duration
	faults   *fault.Injector
	policy   fault.Policy
	logger   *logger.Logger
	items    []models.MenuItem
	// payload is items encoded for the cache. nil disables cache writes.
	payload []byte
}

// NewService builds the catalog. cache may be nil, in which case every read
// comes from the static source.
func NewService(cache *redis.Client, cacheTTL time.Duration, faults *fault.Injector, policy fault.Policy, log *logger.Logger) *Service {
	s := &Service{
		cache:    cache,
		cacheTTL: cacheTTL,
		faults:   faults,
		policy:   policy,
		logger:   log,
		items:    Items(),
	}
	s.payload = s.encode()
	return s
}

func (s *Service) encode() []byte {
	payload, err := json.Marshal(s.items)
	if err != nil {
		s.logger.Error("menu_encode_failed", "Menu cannot be cached", "startup", err, nil)
		return nil
	}
	return payload
}

// List returns the menu as served to clients, with the menu fault policy applied.
func (s *Service) List(ctx context.Context) ([]models.MenuItem, error) {
	if err := s.faults.Apply(ctx, s.policy); err != nil {
		return nil, err
	}
	return s.load(ctx), nil
}

// Get looks an item up in the static source.
func (s *Service) Get(id string) (models.MenuItem, error) {
	for _, item := range s.items {
		if item.ID == id {
			return item, nil
		}
	}
	return models.MenuItem{}, ErrItemNotFound
}

// Snapshot returns the catalog indexed by id. It is not fault-injected.
func (s *Service) Snapshot(ctx context.Context) (map[string]models.MenuItem, error) {
	items := s.load(ctx)
	index := make(map[string]models.MenuItem, len(items))
	for _, item := range items {
		index[item.ID] = item
	}
	return index, nil
}

// load reads through the cache. Cache trouble degrades to the static source.
func (s *Service) load(ctx context.Context) []models.MenuItem {
	requestID := logger.RequestID(ctx)
	if s.cache == nil {
		return Items()
	}

	data, err := s.cache.Get(ctx, cacheKey).Bytes()
	switch {
	case err == nil:
		var items []models.MenuItem
		if jsonErr := json.Unmarshal(data, &items); jsonErr == nil {
			s.logger.Debug("menu_cache_hit", "Menu served from cache", requestID, nil)
			return items
		}
		s.logger.Warn("menu_cache_corrupt", "Cached menu could not be decoded", requestID, nil)
	case errors.Is(err, redis.Nil):
	default:
		s.logger.Warn("menu_cache_unavailable", "Menu cache unavailable, serving source", requestID, map[string]interface{}{
			"error": err.Error(),
		})
		return Items()
	}

	if s.payload != nil {
		if err := s.cache.Set(ctx, cacheKey, s.payload, s.cacheTTL).Err(); err != nil {
			s.logger.Warn("menu_cache_write_failed", "Failed to cache menu", requestID, map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	s.logger.Debug("menu_cache_miss", "Menu served from source", requestID, nil)
	return Items()
}
