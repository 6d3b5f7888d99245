// Package redis provides the Redis-backed menu cache.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/mfalcone/wasabi-takeaway/internal/domain/menu"
	"github.com/mfalcone/wasabi-takeaway/pkg/health"
)

// PingCheck probes the Redis server for readiness checking. The client's own
// Ping returns a *redis.StatusCmd rather than an error, so it needs this
// adapter to serve as a health.CheckFunc.
func PingCheck(client *redis.Client) health.CheckFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

const menuKey = "menu:all"

// cachedDish is the wire form of a dish in the cache.
type cachedDish struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Course      string          `json:"course"`
	Diet        string          `json:"diet"`
	Photo       string          `json:"photo"`
}

// MenuCache caches the rendered unfiltered menu listing. Cache failures are
// swallowed: the menu service falls back to the database on any miss.
type MenuCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ menu.Cache = (*MenuCache)(nil)

// NewMenuCache creates a MenuCache with the given TTL.
func NewMenuCache(client *redis.Client, ttl time.Duration) *MenuCache {
	return &MenuCache{client: client, ttl: ttl}
}

// Get returns the cached menu listing, reporting a miss on any error.
func (c *MenuCache) Get(ctx context.Context) ([]menu.Dish, bool) {
	data, err := c.client.Get(ctx, menuKey).Bytes()
	if err != nil {
		return nil, false
	}

	var cached []cachedDish
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}

	dishes := make([]menu.Dish, len(cached))
	for i, d := range cached {
		dishes[i] = menu.Dish{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Price:       d.Price,
			Course:      menu.Course(d.Course),
			Diet:        menu.Diet(d.Diet),
			Photo:       d.Photo,
		}
	}
	return dishes, true
}

// Set stores the menu listing for the cache TTL.
func (c *MenuCache) Set(ctx context.Context, dishes []menu.Dish) {
	cached := make([]cachedDish, len(dishes))
	for i, d := range dishes {
		cached[i] = cachedDish{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Price:       d.Price,
			Course:      string(d.Course),
			Diet:        string(d.Diet),
			Photo:       d.Photo,
		}
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, menuKey, data, c.ttl).Err()
}

// Invalidate drops the cached listing after a catalog mutation.
func (c *MenuCache) Invalidate(ctx context.Context) {
	_ = c.client.Del(ctx, menuKey).Err()
}
