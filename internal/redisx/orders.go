package redisx

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ariefcatur/go-modular-shop/internal/orders"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OrderCache is a read-through cache for single orders. Failures are logged
// and treated as a miss.
type OrderCache struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewOrderCache(rdb *redis.Client, log *zap.Logger) *OrderCache {
	return &OrderCache{rdb: rdb, log: log}
}

func (c *OrderCache) Get(ctx context.Context, id string) (orders.Order, bool) {
	b, err := c.rdb.Get(ctx, orderKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("order cache get", zap.String("order_id", id), zap.Error(err))
		}
		return orders.Order{}, false
	}
	var o orders.Order
	if err := json.Unmarshal(b, &o); err != nil {
		c.log.Warn("order cache decode", zap.String("order_id", id), zap.Error(err))
		return orders.Order{}, false
	}
	return o, true
}

func (c *OrderCache) Set(ctx context.Context, o orders.Order) {
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, orderKey(o.ID), b, TTLOrderCache).Err(); err != nil {
		c.log.Warn("order cache set", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func (c *OrderCache) Invalidate(ctx context.Context, id string) {
	if err := c.rdb.Del(ctx, orderKey(id)).Err(); err != nil {
		c.log.Warn("order cache invalidate", zap.String("order_id", id), zap.Error(err))
	}
}

// Idempotency maps a client supplied Idempotency-Key to the order it created.
type Idempotency struct {
	rdb *redis.Client
}

func NewIdempotency(rdb *redis.Client) *Idempotency {
	return &Idempotency{rdb: rdb}
}

func (i *Idempotency) Lookup(ctx context.Context, key string) (string, bool, error) {
	id, err := i.rdb.Get(ctx, idemKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Remember keeps the first order recorded for key.
func (i *Idempotency) Remember(ctx context.Context, key, orderID string) error {
	return i.rdb.SetNX(ctx, idemKey(key), orderID, TTLIdempotency).Err()
}
