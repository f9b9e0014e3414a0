package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-modular-shop/internal/catalog"
	"github.com/ariefcatur/go-modular-shop/internal/clock"
	"github.com/ariefcatur/go-modular-shop/internal/config"
	"github.com/ariefcatur/go-modular-shop/internal/httpx"
	"github.com/ariefcatur/go-modular-shop/internal/inventory"
	kafkax "github.com/ariefcatur/go-modular-shop/internal/kafka"
	"github.com/ariefcatur/go-modular-shop/internal/logging"
	"github.com/ariefcatur/go-modular-shop/internal/memory"
	"github.com/ariefcatur/go-modular-shop/internal/notification"
	"github.com/ariefcatur/go-modular-shop/internal/observability"
	"github.com/ariefcatur/go-modular-shop/internal/orders"
	"github.com/ariefcatur/go-modular-shop/internal/postgres"
	"github.com/ariefcatur/go-modular-shop/internal/redisx"
	"github.com/ariefcatur/go-modular-shop/internal/users"
	"github.com/ariefcatur/go-modular-shop/migrations"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type stores struct {
	products catalog.ProductRepository
	orders   orders.OrderRepository
	users    users.Repository
	close    func()
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, shutdownOTel, err := observability.Setup(ctx, observability.Options{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Endpoint:       cfg.OTLPEndpoint,
	})
	if err != nil {
		stdlog.Fatalf("otel setup: %v", err)
	}
	log := logging.New(logging.Options{Service: cfg.ServiceName, Level: cfg.LogLevel, OTel: cfg.OTLPEndpoint != ""})
	defer func() { _ = log.Sync() }()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("storage init failed", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer st.close()

	deps := httpx.Deps{Log: log, Timeout: cfg.RequestTimeout}
	var sessions users.SessionStore = memory.NewSessionStore()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Warn("redis unavailable, running without cache and idempotency", zap.Error(err))
	} else {
		deps.Cache = redisx.NewOrderCache(rdb, log)
		deps.Idempotency = redisx.NewIdempotency(rdb)
		sessions = redisx.NewSessionStore(rdb)
	}

	writer, err := kafkax.NewWriter(cfg.KafkaBrokers, cfg.ServiceName, tp)
	if err != nil {
		log.Fatal("kafka writer init failed", zap.Error(err))
	}
	producer := kafkax.NewProducer(writer, 1024, log)
	producer.Start(ctx)

	clk := clock.NewSystem()
	ledger := catalog.NewLedger(st.products, log,
		catalog.WithMaxAttempts(cfg.ReserveMaxAttempts),
		catalog.WithBackoff(cfg.ReserveBackoff),
	)
	deps.Catalog = catalog.NewService(st.products, ledger, clk, log)
	deps.Orders = orders.NewService(
		st.orders,
		inventory.NewGateway(deps.Catalog),
		notification.NewKafkaNotifier(producer, cfg.ServiceName, clk),
		clk, log,
	)
	deps.Users = users.NewService(st.users, sessions, clk, log, cfg.SessionTTL)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", zap.Error(err))
	}

	stop()
	producer.WaitClosed()

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownOTel(sctx); err != nil {
		log.Warn("otel shutdown", zap.Error(err))
	}
}

func openStores(ctx context.Context, cfg config.Config, log *zap.Logger) (stores, error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Info("using in-memory storage")
		return stores{
			products: memory.NewProductStore(),
			orders:   memory.NewOrderStore(),
			users:    memory.NewUserStore(),
			close:    func() {},
		}, nil
	}

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN, 20)
	if err != nil {
		return stores{}, err
	}
	if err := migrations.Apply(ctx, pool); err != nil {
		pool.Close()
		return stores{}, err
	}
	return stores{
		products: postgres.NewProductRepository(pool),
		orders:   postgres.NewOrderRepository(pool),
		users:    postgres.NewUserRepository(pool),
		close:    pool.Close,
	}, nil
}
