package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfalcone/wasabi-takeaway/internal/domain/menu"
)

func newCache(t *testing.T, ttl time.Duration) (*MenuCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewMenuCache(client, ttl), mr
}

func sampleDishes() []menu.Dish {
	return []menu.Dish{
		{
			ID:          "d1",
			Name:        "Bruschetta al pomodoro",
			Description: "Grilled bread, tomatoes",
			Price:       decimal.RequireFromString("4.50"),
			Course:      menu.CourseAntipasto,
			Diet:        menu.DietVegano,
			Photo:       "dishes/bruschetta.jpg",
		},
		{
			ID:     "d2",
			Name:   "Tiramisu",
			Price:  decimal.RequireFromString("5.50"),
			Course: menu.CourseDessert,
			Diet:   menu.DietVegetariano,
		},
	}
}

func TestMenuCache_RoundTrip(t *testing.T) {
	cache, _ := newCache(t, time.Minute)
	ctx := context.Background()

	_, ok := cache.Get(ctx)
	require.False(t, ok, "empty cache must miss")

	cache.Set(ctx, sampleDishes())

	got, ok := cache.Get(ctx)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "Bruschetta al pomodoro", got[0].Name)
	assert.Equal(t, menu.CourseAntipasto, got[0].Course)
	assert.True(t, decimal.RequireFromString("4.50").Equal(got[0].Price))
	assert.Equal(t, "dishes/bruschetta.jpg", got[0].Photo)
}

func TestMenuCache_Invalidate(t *testing.T) {
	cache, _ := newCache(t, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, sampleDishes())
	cache.Invalidate(ctx)

	_, ok := cache.Get(ctx)
	assert.False(t, ok)
}

func TestMenuCache_TTLExpiry(t *testing.T) {
	cache, mr := newCache(t, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, sampleDishes())
	mr.FastForward(2 * time.Minute)

	_, ok := cache.Get(ctx)
	assert.False(t, ok)
}

func TestMenuCache_CorruptEntryIsMiss(t *testing.T) {
	cache, mr := newCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, mr.Set("menu:all", "not json"))

	_, ok := cache.Get(ctx)
	assert.False(t, ok)
}

func TestPingCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	check := PingCheck(client)
	require.NoError(t, check(context.Background()))

	mr.Close()
	assert.Error(t, check(context.Background()))
}

func TestMenuCache_DownServerIsMiss(t *testing.T) {
	cache, mr := newCache(t, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, sampleDishes())
	mr.Close()

	_, ok := cache.Get(ctx)
	assert.False(t, ok, "cache failures degrade to a miss")
}
