package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-modular-shop/internal/catalog"
	"github.com/ariefcatur/go-modular-shop/internal/orders"
	"github.com/ariefcatur/go-modular-shop/internal/users"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// OrderCache is an optional read-through cache for GET /orders/{id}.
type OrderCache interface {
	Get(ctx context.Context, id string) (orders.Order, bool)
	Set(ctx context.Context, o orders.Order)
	Invalidate(ctx context.Context, id string)
}

// IdempotencyStore remembers which order an Idempotency-Key produced.
type IdempotencyStore interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Remember(ctx context.Context, key, orderID string) error
}

type Deps struct {
	Catalog     *catalog.Service
	Orders      *orders.Service
	Users       *users.Service
	Cache       OrderCache
	Idempotency IdempotencyStore
	Log         *zap.Logger
	Timeout     time.Duration
}

func NewRouter(d Deps) *chi.Mux {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Cache == nil {
		d.Cache = nopCache{}
	}
	if d.Timeout <= 0 {
		d.Timeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger(d.Log), middleware.Recoverer)
	r.Use(middleware.Timeout(d.Timeout))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	auth := Authenticate(d.Users, d.Log)
	r.Route("/api/v1", func(r chi.Router) {
		(&UsersHandler{svc: d.Users, log: d.Log}).Register(r, auth)
		(&ProductsHandler{svc: d.Catalog, log: d.Log}).Register(r)
		(&OrdersHandler{
			svc:   d.Orders,
			cache: d.Cache,
			idem:  d.Idempotency,
			log:   d.Log,
		}).Register(r, auth)
	})
	return r
}

// RequestLogger logs one line per request.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (orders.Order, bool) { return orders.Order{}, false }
func (nopCache) Set(context.Context, orders.Order)                {}
func (nopCache) Invalidate(context.Context, string)               {}
