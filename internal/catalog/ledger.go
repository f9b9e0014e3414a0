package catalog

import (
	"context"
	"time"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type StockLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type StockChange struct {
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	StockAfter int    `json:"current_stock"`
}

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 20 * time.Millisecond
)

// Ledger owns stock mutations. Each mutation is a read, an in-memory change and a
// version-conditioned write; a lost race re-runs the whole cycle from a fresh read.
type Ledger struct {
	repo        ProductRepository
	log         *zap.Logger
	maxAttempts int
	backoff     time.Duration
}

type LedgerOption func(*Ledger)

func WithMaxAttempts(n int) LedgerOption {
	return func(l *Ledger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

func WithBackoff(d time.Duration) LedgerOption {
	return func(l *Ledger) {
		if d > 0 {
			l.backoff = d
		}
	}
}

func NewLedger(repo ProductRepository, log *zap.Logger, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		repo:        repo,
		log:         log,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reserve takes qty units out of the product's stock and returns the stock left.
// Inactive products cannot be reserved.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int) (int, error) {
	p, err := l.mutate(ctx, "reserve", productID, func(p *Product) error {
		if !p.Available() {
			return unavailable(productID)
		}
		return p.Reserve(qty)
	})
	return p.Stock, err
}

// Restore takes back units that were released moments ago, when the release
// has to be undone. It skips the availability check of Reserve.
func (l *Ledger) Restore(ctx context.Context, productID string, qty int) (int, error) {
	p, err := l.mutate(ctx, "restore", productID, func(p *Product) error { return p.Reserve(qty) })
	return p.Stock, err
}

// Release puts qty units back. The quantity is trusted; no record of prior
// reservations is consulted.
func (l *Ledger) Release(ctx context.Context, productID string, qty int) (int, error) {
	p, err := l.mutate(ctx, "release", productID, func(p *Product) error { return p.Release(qty) })
	return p.Stock, err
}

// ReserveBatch checks that every product exists and is active, then reserves
// line by line in submission order. On a mid-batch failure the changes
// already applied are returned with the error; reconciling them is the
// caller's job.
func (l *Ledger) ReserveBatch(ctx context.Context, lines []StockLine) ([]StockChange, error) {
	return l.batch(ctx, lines, true, l.Reserve)
}

func (l *Ledger) ReleaseBatch(ctx context.Context, lines []StockLine) ([]StockChange, error) {
	return l.batch(ctx, lines, false, l.Release)
}

func (l *Ledger) batch(ctx context.Context, lines []StockLine, needActive bool, apply func(context.Context, string, int) (int, error)) ([]StockChange, error) {
	for _, ln := range lines {
		p, err := l.repo.GetByID(ctx, ln.ProductID)
		if err != nil {
			return nil, err
		}
		if needActive && !p.Available() {
			return nil, unavailable(ln.ProductID)
		}
	}

	applied := make([]StockChange, 0, len(lines))
	for _, ln := range lines {
		left, err := apply(ctx, ln.ProductID, ln.Quantity)
		if err != nil {
			return applied, err
		}
		applied = append(applied, StockChange{ProductID: ln.ProductID, Quantity: ln.Quantity, StockAfter: left})
	}
	return applied, nil
}

func unavailable(productID string) error {
	return apperr.NotFound("Product", productID).With("reason", "inactive")
}

// mutate runs change against a fresh copy of the product and persists it,
// retrying the whole cycle when the versioned write loses a race.
func (l *Ledger) mutate(ctx context.Context, op, productID string, change func(*Product) error) (Product, error) {
	attempts := 0
	p, err := backoff.RetryWithData(func() (Product, error) {
		attempts++
		p, err := l.repo.GetByID(ctx, productID)
		if err != nil {
			return Product{}, backoff.Permanent(err)
		}
		if err := change(&p); err != nil {
			return Product{}, backoff.Permanent(err)
		}
		updated, err := l.repo.Update(ctx, p)
		if err != nil {
			if apperr.IsConflict(err) {
				l.log.Debug("stock write lost version race",
					zap.String("op", op),
					zap.String("product_id", productID),
					zap.Int("attempt", attempts),
				)
				return Product{}, err
			}
			return Product{}, backoff.Permanent(err)
		}
		return updated, nil
	}, l.policy(ctx))
	if err != nil {
		if apperr.IsConflict(err) {
			l.log.Warn("stock mutation gave up after retries",
				zap.String("op", op),
				zap.String("product_id", productID),
				zap.Int("attempts", attempts),
			)
			return Product{}, apperr.Wrapf(err, apperr.CodeConcurrency,
				"%s of product '%s' conflicted with concurrent updates %d times", op, productID, attempts)
		}
		return Product{}, err
	}
	return p, nil
}

func (l *Ledger) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.backoff
	b.MaxInterval = 8 * l.backoff
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(l.maxAttempts-1)), ctx)
}
