package kafka

import (
	"context"
	"errors"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Handler returns nil once the message is fully processed.
type Handler func(ctx context.Context, m kafka.Message) error

// MessageReader is satisfied by the traced otelkafka reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (*kafka.Message, error)
	Close() error
}

// NewReader builds a traced group reader over one or more topics.
func NewReader(brokers []string, group string, topics ...string) (*otelkafka.Reader, error) {
	base := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     group,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return otelkafka.NewReader(base)
}

type Consumer struct {
	r          MessageReader
	workers    int
	maxRetries uint64
	log        *zap.Logger
}

func NewConsumer(r MessageReader, workers int, log *zap.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, maxRetries: 3, log: log}
}

// Start dispatches messages to the worker pool until ctx is cancelled. A
// handler error is retried a few times, then logged and skipped.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, c.workers*4)
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < c.workers; i++ {
		worker := i
		g.Go(func() error {
			for m := range jobs {
				c.handle(gctx, worker, h, m)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for {
			m, err := c.r.ReadMessage(gctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || gctx.Err() != nil {
					return nil
				}
				c.log.Error("kafka read failed", zap.Error(err))
				select {
				case <-time.After(200 * time.Millisecond):
					continue
				case <-gctx.Done():
					return nil
				}
			}
			select {
			case jobs <- *m:
			case <-gctx.Done():
				return nil
			}
		}
	})

	return g.Wait()
}

func (c *Consumer) handle(ctx context.Context, worker int, h Handler, m kafka.Message) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	err := backoff.Retry(func() error { return h(ctx, m) }, policy)
	if err != nil {
		c.log.Error("message handling failed, skipping",
			zap.Int("worker", worker),
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Error(err),
		)
	}
}
