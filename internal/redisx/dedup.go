package redisx

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Dedup records processed event ids per consuming service.
type Dedup struct {
	rdb     *redis.Client
	service string
}

func NewDedup(rdb *redis.Client, service string) *Dedup {
	return &Dedup{rdb: rdb, service: service}
}

// FirstSeen marks eventID as processed and reports whether this call was the
// first to do so.
func (d *Dedup) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	return d.rdb.SetNX(ctx, dedupKey(d.service, eventID), 1, TTLDedup).Result()
}

// Forget drops the marker so a failed event can be processed again.
func (d *Dedup) Forget(ctx context.Context, eventID string) error {
	return d.rdb.Del(ctx, dedupKey(d.service, eventID)).Err()
}
