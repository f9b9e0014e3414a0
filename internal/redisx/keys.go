package redisx

import (
	"fmt"
	"time"
)

const (
	// idem:order:create:{idempotency key} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// order:{order_id} -> order JSON
	KeyOrder = "order:%s"

	// dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// session:{token} -> user_id
	KeySession = "session:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderCache  = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)

func idemKey(key string) string               { return fmt.Sprintf(KeyIdemOrderCreate, key) }
func orderKey(id string) string               { return fmt.Sprintf(KeyOrder, id) }
func dedupKey(service, eventID string) string { return fmt.Sprintf(KeyDedup, service, eventID) }
func sessionKey(token string) string          { return fmt.Sprintf(KeySession, token) }
