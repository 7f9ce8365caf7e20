// internal/app/runner.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/launchpad/internal/api"
	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/dex/paper"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/fund"
	"github.com/rovshanmuradov/launchpad/internal/graduation"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/market"
	"github.com/rovshanmuradov/launchpad/internal/notify"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/memory"
	"github.com/rovshanmuradov/launchpad/internal/storage/postgres"
	"github.com/rovshanmuradov/launchpad/internal/storage/redis"
	"github.com/rovshanmuradov/launchpad/internal/trading"
	"github.com/rovshanmuradov/launchpad/internal/utils/logger"
	"github.com/rovshanmuradov/launchpad/internal/utils/metrics"
	"github.com/rovshanmuradov/launchpad/internal/wallet"
)

const busBufferSize = 1024

// Store объединяет все хранилища сервиса: кривые, события graduation, выводы и журнал сделок.
type Store interface {
	storage.CurveStore
	graduation.EventStore
	fund.Store
	storage.TradeStore
}

// Runner собирает компоненты launchpad и управляет их жизненным циклом.
type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	shutdown *ShutdownHandler

	store    Store
	bus      *events.Bus
	registry *launchpad.Registry
	desk     *trading.Desk
	orch     *graduation.Orchestrator
	sweeper  *graduation.Sweeper
	handler  http.Handler
	logLevel http.Handler
}

// Option настраивает Runner.
type Option func(*Runner)

// WithLogLevel exposes the runtime log level at /debug/loglevel.
func WithLogLevel(level zap.AtomicLevel) Option {
	return func(r *Runner) { r.logLevel = level }
}

// NewRunner принимает cfg и logger
func NewRunner(cfg *config.Config, log *zap.Logger, opts ...Option) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Runner{
		cfg:      cfg,
		logger:   log,
		shutdown: NewShutdownHandler(log.Named("shutdown")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize connects storage and wires every component. On error the already
// opened resources are released.
func (r *Runner) Initialize(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			_ = r.shutdown.Shutdown(context.Background())
		}
	}()

	curveCfg, err := r.cfg.CurveConfig()
	if err != nil {
		return err
	}
	gradCfg, err := r.cfg.GraduationConfig()
	if err != nil {
		return err
	}

	if r.store, err = r.openStore(ctx); err != nil {
		return err
	}

	r.bus = events.NewBus(r.logger, busBufferSize)
	r.shutdown.AddFunc("event_bus", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return r.bus.Shutdown(ctx)
	})

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(promRegistry)

	if r.registry, err = launchpad.NewRegistry(r.store, curveCfg, r.bus, r.logger); err != nil {
		return err
	}
	endLoad := logger.Track(r.logger, "load_curves")
	loaded, err := r.registry.Load(ctx)
	endLoad()
	if err != nil {
		return fmt.Errorf("load curves: %w", err)
	}
	r.logger.Info("Curves loaded", zap.Int("count", loaded))

	trades, err := r.store.ListTrades(ctx)
	if err != nil {
		return fmt.Errorf("load trades: %w", err)
	}
	aggregator := market.NewAggregator(r.registry, r.logger)
	aggregator.Replay(trades)
	aggregator.Subscribe(r.bus)

	cache, err := r.statusCache(ctx)
	if err != nil {
		return err
	}
	statusOpts := []graduation.StatusOption{
		graduation.WithMarketData(aggregator),
		graduation.WithCache(cache),
	}
	if r.cfg.Paper.SolUsdPrice.IsPositive() {
		statusOpts = append(statusOpts, graduation.WithPriceOracle(paper.NewStaticOracle(r.cfg.Paper.SolUsdPrice)))
	}
	status, err := graduation.NewStatusService(r.registry, gradCfg, r.logger, statusOpts...)
	if err != nil {
		return err
	}
	r.bus.SubscribeFunc(events.TradeApplied, status.HandleEvent)
	r.bus.SubscribeFunc(events.TokenGraduated, status.HandleEvent)

	allocator, err := graduation.NewAllocator(r.cfg.AllocationConfig(), gradCfg.MinimumLiquidity, gradCfg.GraduationFeePercent)
	if err != nil {
		return err
	}

	payer, err := r.payer()
	if err != nil {
		return err
	}

	settlement := paper.NewSettlement(payer, r.cfg.Paper.SettlementLatency, r.logger)
	settlement.Replay(trades)
	r.desk = trading.NewDesk(r.registry, settlement, r.bus, collector, r.cfg.DeskConfig(), r.logger,
		trading.WithTradeLog(r.store))
	r.shutdown.AddFunc("trade_desk", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return r.desk.Shutdown(ctx)
	})

	deps := graduation.OrchestratorDeps{
		Curves:    r.registry,
		Gate:      r.desk,
		Store:     r.store,
		Status:    status,
		Allocator: allocator,
		Pools:     paper.NewPoolCreator(payer, r.cfg.Paper.PoolLatency, r.logger),
		Publisher: r.bus,
		Metrics:   collector,
	}
	if r.cfg.NATS.URL != "" {
		publisher, err := notify.NewPublisher(r.cfg.NATS.Config, r.logger)
		if err != nil {
			return err
		}
		publisher.Subscribe(r.bus)
		deps.Notifier = publisher
		r.shutdown.AddFunc("nats", func() error {
			publisher.Close()
			return nil
		})
	}

	if r.orch, err = graduation.NewOrchestrator(deps, r.cfg.OrchestratorConfig(), r.logger); err != nil {
		return err
	}
	if _, err := r.orch.Reconcile(ctx); err != nil {
		return fmt.Errorf("reconcile graduations: %w", err)
	}

	r.sweeper = graduation.NewSweeper(r.orch, status, r.registry,
		r.cfg.Orchestrator.SweepInterval, r.cfg.Orchestrator.SweepConcurrency, r.logger)

	r.handler = api.NewServer(api.Deps{
		Tokens:    r.registry,
		Trader:    r.desk,
		Status:    status,
		Graduator: r.orch,
		Funds:     fund.NewService(r.store, r.store, r.registry, r.bus, r.logger),
		Gatherer:  promRegistry,
		LogLevel:  r.logLevel,
	}, r.logger).Handler()

	r.logger.Info("Launchpad initialized",
		zap.String("payer", payer.String()),
		zap.Bool("postgres", r.cfg.Postgres.URL != ""),
		zap.Bool("redis", r.cfg.Redis.Enabled),
		zap.Bool("nats", r.cfg.NATS.URL != ""))
	return nil
}

// Handler returns the HTTP handler; valid after Initialize.
func (r *Runner) Handler() http.Handler {
	return r.handler
}

// Run serves HTTP and runs the graduation sweeper until ctx is cancelled,
// then shuts everything down.
func (r *Runner) Run(ctx context.Context) error {
	if r.handler == nil {
		return errors.New("runner is not initialized")
	}

	server := &http.Server{
		Addr:         r.cfg.HTTP.Addr,
		Handler:      r.handler,
		ReadTimeout:  r.cfg.HTTP.ReadTimeout,
		WriteTimeout: r.cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.logger.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return r.sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, r.Shutdown(shutdownCtx))
}

// Shutdown releases all resources registered during Initialize.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.logger.Info("Launchpad shutting down gracefully")
	return r.shutdown.Shutdown(ctx)
}

func (r *Runner) openStore(ctx context.Context) (Store, error) {
	if r.cfg.Postgres.URL == "" {
		r.logger.Warn("Postgres URL is empty, using in-memory storage")
		return memory.NewStore(), nil
	}

	opts := postgres.Options{
		MaxIdleConns:    r.cfg.Postgres.MaxIdleConns,
		MaxOpenConns:    r.cfg.Postgres.MaxOpenConns,
		ConnMaxLifetime: r.cfg.Postgres.ConnMaxLifetime,
		SlowQuery:       r.cfg.Postgres.SlowQuery,
	}
	connect := func() (*postgres.Store, error) {
		store, err := postgres.Open(r.cfg.Postgres.URL, opts, r.logger)
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	}
	notify := func(err error, d time.Duration) {
		r.logger.Warn("Postgres not ready, retrying", zap.Error(err), zap.Duration("backoff", d))
	}

	store, err := backoff.Retry(ctx, connect,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(max(r.cfg.Postgres.ConnectAttempts, 1))),
		backoff.WithNotify(notify))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	r.shutdown.Add("postgres", store)

	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (r *Runner) statusCache(ctx context.Context) (graduation.Cache, error) {
	if !r.cfg.Redis.Enabled {
		return graduation.NewMemoryCache(r.cfg.Graduation.CacheTTL), nil
	}
	cache, err := redis.New(r.cfg.Redis)
	if err != nil {
		return nil, err
	}
	r.shutdown.Add("redis", cache)
	if err := cache.Ping(ctx); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return cache, nil
}

func (r *Runner) payer() (*wallet.Wallet, error) {
	if r.cfg.Paper.PayerKey == "" {
		r.logger.Warn("Paper payer key not configured, using an ephemeral key")
		return wallet.Ephemeral(), nil
	}
	w, err := wallet.Load(r.cfg.Paper.PayerKey)
	if err != nil {
		return nil, fmt.Errorf("invalid paper.payer_key: %w", err)
	}
	return w, nil
}
