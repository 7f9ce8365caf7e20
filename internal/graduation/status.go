// internal/graduation/status.go
package graduation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
)

// StatusService combines curve snapshots, market data and the price oracle
// into graduation statuses, caching the result.
type StatusService struct {
	curves Curves
	cfg    Config
	market MarketDataSource
	oracle PriceOracle
	cache  Cache
	logger *zap.Logger
	now    func() time.Time
}

// StatusOption configures optional collaborators of StatusService.
type StatusOption func(*StatusService)

// WithMarketData sets the source of volume, holders and age.
func WithMarketData(src MarketDataSource) StatusOption {
	return func(s *StatusService) { s.market = src }
}

// WithPriceOracle sets the SOL/USD oracle used for USD thresholds.
func WithPriceOracle(o PriceOracle) StatusOption {
	return func(s *StatusService) { s.oracle = o }
}

// WithCache sets the status cache.
func WithCache(c Cache) StatusOption {
	return func(s *StatusService) { s.cache = c }
}

// WithClock overrides the evaluation clock.
func WithClock(now func() time.Time) StatusOption {
	return func(s *StatusService) { s.now = now }
}

// NewStatusService creates a status service.
func NewStatusService(curves Curves, cfg Config, logger *zap.Logger, opts ...StatusOption) (*StatusService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StatusService{
		curves: curves,
		cfg:    cfg,
		logger: logger.Named("graduation_status"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the thresholds in use.
func (s *StatusService) Config() Config {
	return s.cfg
}

// Status returns a cached status when available, otherwise evaluates afresh.
func (s *StatusService) Status(ctx context.Context, mint solana.PublicKey) (Status, error) {
	if s.cache != nil {
		st, err := s.cache.Get(ctx, mint)
		if err == nil {
			return st, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			// Кэш необязателен: ошибка не должна ломать чтение статуса
			s.logger.Warn("Status cache read failed", zap.String("mint", mint.String()), zap.Error(err))
		}
	}
	st, _, err := s.Fresh(ctx, mint)
	return st, err
}

// Fresh evaluates bypassing the cache and returns the snapshot it evaluated.
func (s *StatusService) Fresh(ctx context.Context, mint solana.PublicKey) (Status, curve.Snapshot, error) {
	engine, err := s.curves.Engine(mint)
	if err != nil {
		return Status{}, curve.Snapshot{}, err
	}
	snap := engine.Snapshot()
	st, err := s.EvaluateSnapshot(ctx, snap)
	return st, snap, err
}

// EvaluateSnapshot evaluates a given snapshot with current market data and refreshes the cache.
func (s *StatusService) EvaluateSnapshot(ctx context.Context, snap curve.Snapshot) (Status, error) {
	md, err := s.marketData(ctx, snap.Mint)
	if err != nil {
		return Status{}, err
	}

	st := Evaluate(snap, s.cfg, snap.Config.TotalSupply, md)
	if s.cache != nil {
		if err := s.cache.Set(ctx, st); err != nil {
			s.logger.Warn("Status cache write failed", zap.String("mint", snap.Mint.String()), zap.Error(err))
		}
	}
	return st, nil
}

// Invalidate drops the cached status of a mint.
func (s *StatusService) Invalidate(ctx context.Context, mint solana.PublicKey) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, mint); err != nil {
		s.logger.Warn("Status cache invalidation failed", zap.String("mint", mint.String()), zap.Error(err))
	}
}

// HandleEvent invalidates the cache on trades and graduations. Subscribe it on the bus.
func (s *StatusService) HandleEvent(ctx context.Context, e events.Event) error {
	switch ev := e.(type) {
	case events.TradeAppliedEvent:
		s.Invalidate(ctx, ev.Mint)
	case events.TokenGraduatedEvent:
		s.Invalidate(ctx, ev.Mint)
	}
	return nil
}

func (s *StatusService) marketData(ctx context.Context, mint solana.PublicKey) (MarketData, error) {
	var md MarketData
	if s.market != nil {
		var err error
		md, err = s.market.MarketData(ctx, mint)
		if err != nil {
			return MarketData{}, fmt.Errorf("market data for %s: %w", mint, err)
		}
	}
	if s.cfg.MarketCapDenomination == DenominationUSD && s.oracle != nil {
		price, err := s.oracle.SolUsdPrice(ctx)
		if err != nil {
			return MarketData{}, fmt.Errorf("sol/usd price: %w", err)
		}
		md.SolUsdPrice = price
	}
	md.AsOf = s.now()
	return md, nil
}
