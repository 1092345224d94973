package delivery

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "delivery:warehouses:"

// Cached memoizes non-empty lookups in Redis. Redis failures are logged and
// the lookup falls through to the wrapped implementation.
type Cached struct {
	next Lookup
	rdb  redis.Cmdable
	ttl  time.Duration
}

var _ Lookup = (*Cached)(nil)

// NewCached wraps next with a Redis cache of the given TTL.
func NewCached(next Lookup, rdb redis.Cmdable, ttl time.Duration) *Cached {
	return &Cached{next: next, rdb: rdb, ttl: ttl}
}

// Warehouses implements Lookup.
func (c *Cached) Warehouses(ctx context.Context, city string) []Warehouse {
	norm := normalizeCity(city)
	if norm == "" {
		return []Warehouse{}
	}
	lg := zctx.From(ctx).Named("delivery.cache")
	key := cacheKeyPrefix + norm

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		ws, derr := decodeWarehouses(data)
		if derr == nil {
			return ws
		}
		lg.Warn("Drop corrupt cache entry", zap.String("key", key), zap.Error(derr))
	case errors.Is(err, redis.Nil):
	default:
		lg.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}

	ws := c.next.Warehouses(ctx, city)
	// An empty list may be a transient API failure.
	if len(ws) == 0 {
		return ws
	}
	if err := c.rdb.Set(ctx, key, encodeWarehouses(ws), c.ttl).Err(); err != nil {
		lg.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
	return ws
}

func encodeWarehouses(ws []Warehouse) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, w := range ws {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(w.ID)
		e.FieldStart("name")
		e.Str(w.Name)
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

func decodeWarehouses(data []byte) ([]Warehouse, error) {
	ws := []Warehouse{}
	d := jx.DecodeBytes(data)
	err := d.Arr(func(d *jx.Decoder) error {
		var w Warehouse
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "id":
				v, err := d.Str()
				w.ID = v
				return err
			case "name":
				v, err := d.Str()
				w.Name = v
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		ws = append(ws, w)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode warehouses")
	}
	return ws, nil
}
