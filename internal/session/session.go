// Package session keeps visitor carts in Redis, one key per session.
//
// Concurrent requests of the same session are not serialized: each request
// loads the cart, changes it and saves it back, and the last write wins.
package session

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/candle-shop/internal/domain/cart"
)

// DefaultTTL is how long an idle session cart is kept.
const DefaultTTL = 14 * 24 * time.Hour

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like an id produced by NewID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

// Store loads and saves carts. Every access extends the session lifetime.
type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewStore creates a Store.
func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func cartKey(id string) string {
	return "session:" + id + ":cart"
}

// Load returns the cart of a session; unknown sessions have an empty cart.
// A stored cart that cannot be decoded is discarded.
func (s *Store) Load(ctx context.Context, id string) (cart.Cart, error) {
	data, err := s.rdb.GetEx(ctx, cartKey(id), s.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return cart.New(), nil
	}
	if err != nil {
		return cart.New(), errors.Wrap(err, "load cart")
	}
	c, err := cart.Decode(data)
	if err != nil {
		zctx.From(ctx).Warn("Discard unreadable cart", zap.String("session", id), zap.Error(err))
		return cart.New(), nil
	}
	return c, nil
}

// Save stores c for the session. An empty cart deletes the key.
func (s *Store) Save(ctx context.Context, id string, c cart.Cart) error {
	if c.Len() == 0 {
		return s.Clear(ctx, id)
	}
	if err := s.rdb.Set(ctx, cartKey(id), cart.Encode(c), s.ttl).Err(); err != nil {
		return errors.Wrap(err, "save cart")
	}
	return nil
}

// Clear removes the session cart.
func (s *Store) Clear(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, cartKey(id)).Err(); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}
