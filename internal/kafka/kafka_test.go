package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessage(_ context.Context, m kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, m)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducerDropsWhenInboxFull(t *testing.T) {
	p := NewProducer(&fakeWriter{}, 1, zap.NewNop())

	if err := p.Publish(context.Background(), "t", []byte("k"), []byte("1")); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := p.Publish(context.Background(), "t", []byte("k"), []byte("2")); !errors.Is(err, ErrInboxFull) {
		t.Fatalf("second publish = %v, want ErrInboxFull", err)
	}
}

func TestProducerFlushesOnShutdown(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducer(w, 16, zap.NewNop())
	for i := 0; i < 5; i++ {
		if err := p.Publish(context.Background(), "order.created", []byte("o-1"), []byte("x")); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()
	p.WaitClosed()
	p.Close()

	if len(w.msgs) != 5 || !w.closed {
		t.Fatalf("written=%d closed=%v", len(w.msgs), w.closed)
	}
	if w.msgs[0].Topic != "order.created" || string(w.msgs[0].Key) != "o-1" {
		t.Fatalf("message = %+v", w.msgs[0])
	}
	if err := p.Publish(context.Background(), "t", nil, nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("publish after close = %v", err)
	}
}

type fakeReader struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (r *fakeReader) ReadMessage(ctx context.Context) (*kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return &m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (r *fakeReader) Close() error { return nil }

func TestConsumerDispatchesAndRetries(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{{Value: []byte("a")}, {Value: []byte("b")}, {Value: []byte("c")}}}
	c := NewConsumer(r, 2, zap.NewNop())

	var handled, failures atomic.Int32
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			if string(m.Value) == "b" && failures.Add(1) == 1 {
				return errors.New("transient")
			}
			if handled.Add(1) == 3 {
				cancel()
			}
			return nil
		})
	}()

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if handled.Load() != 3 {
		t.Fatalf("handled %d messages, want 3", handled.Load())
	}
}

func TestHeader(t *testing.T) {
	hs := []kafka.Header{{Key: "event_type", Value: []byte("OrderCreated")}}
	if got := Header(hs, "event_type"); got != "OrderCreated" {
		t.Fatalf("Header = %q", got)
	}
	if got := Header(hs, "missing"); got != "" {
		t.Fatalf("Header = %q", got)
	}
}
