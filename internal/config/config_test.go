package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"HTTP_ADDR", "STORAGE_DRIVER", "KAFKA_BROKERS", "RESERVE_MAX_ATTEMPTS",
		"RESERVE_BACKOFF", "SESSION_TTL", "REQUEST_TIMEOUT", "NOTIFIER_WORKERS",
		"OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(k, "")
	}

	c := Load()
	if c.HTTPAddr != ":8081" || c.StorageDriver != StoragePostgres {
		t.Fatalf("addr/driver = %q/%q", c.HTTPAddr, c.StorageDriver)
	}
	if c.ReserveMaxAttempts != 3 || c.ReserveBackoff != 20*time.Millisecond {
		t.Fatalf("reserve policy = %d/%v", c.ReserveMaxAttempts, c.ReserveBackoff)
	}
	if c.SessionTTL != 24*time.Hour || c.RequestTimeout != 15*time.Second {
		t.Fatalf("ttl/timeout = %v/%v", c.SessionTTL, c.RequestTimeout)
	}
	if c.NotifierWorkers != 4 || c.OTLPEndpoint != "" {
		t.Fatalf("workers/otlp = %d/%q", c.NotifierWorkers, c.OTLPEndpoint)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("RESERVE_MAX_ATTEMPTS", "5")
	t.Setenv("RESERVE_BACKOFF", "50ms")
	t.Setenv("NOTIFIER_WORKERS", "not-a-number")

	c := Load()
	if c.StorageDriver != StorageMemory {
		t.Fatalf("driver = %q", c.StorageDriver)
	}
	if want := []string{"k1:9092", "k2:9092"}; !reflect.DeepEqual(c.KafkaBrokers, want) {
		t.Fatalf("brokers = %v", c.KafkaBrokers)
	}
	if c.ReserveMaxAttempts != 5 || c.ReserveBackoff != 50*time.Millisecond {
		t.Fatalf("reserve policy = %d/%v", c.ReserveMaxAttempts, c.ReserveBackoff)
	}
	if c.NotifierWorkers != 4 {
		t.Fatalf("workers = %d, want default", c.NotifierWorkers)
	}
}
