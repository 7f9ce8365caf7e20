// internal/market/aggregator.go
package market

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/graduation"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

// DefaultWindow - окно скользящего объема
const DefaultWindow = 24 * time.Hour

// CreationSource resolves when a token was registered.
type CreationSource interface {
	CreatedAt(mint solana.PublicKey) (time.Time, error)
}

type volumePoint struct {
	at       time.Time
	lamports uint64
}

type tokenStats struct {
	createdAt time.Time
	volume    []volumePoint
	balances  map[solana.PublicKey]uint64
}

// Aggregator builds market data from confirmed trades. Only TradeApplied events
// are counted, so unsettled or rejected trades never inflate volume or holders.
type Aggregator struct {
	mu      sync.RWMutex
	tokens  map[solana.PublicKey]*tokenStats
	created CreationSource
	window  time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures the aggregator.
type Option func(*Aggregator)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithWindow overrides the rolling volume window.
func WithWindow(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.window = d
		}
	}
}

// NewAggregator creates an aggregator. created may be nil.
func NewAggregator(created CreationSource, logger *zap.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{
		tokens:  make(map[solana.PublicKey]*tokenStats),
		created: created,
		window:  DefaultWindow,
		now:     time.Now,
		logger:  logger.Named("market"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Subscribe registers the aggregator on the bus for token and trade events.
func (a *Aggregator) Subscribe(bus *events.Bus) []events.Subscription {
	return []events.Subscription{
		bus.SubscribeFunc(events.TokenCreated, a.HandleEvent),
		bus.SubscribeFunc(events.TradeApplied, a.HandleEvent),
	}
}

// HandleEvent updates statistics from a bus event.
func (a *Aggregator) HandleEvent(_ context.Context, e events.Event) error {
	switch ev := e.(type) {
	case events.TokenCreatedEvent:
		a.mu.Lock()
		a.stats(ev.Mint).createdAt = ev.Timestamp()
		a.mu.Unlock()
	case events.TradeAppliedEvent:
		a.recordTrade(ev)
	}
	return nil
}

// Replay восстанавливает держателей и скользящий объем из журнала сделок после рестарта.
// Вызывать до подписки на шину.
func (a *Aggregator) Replay(trades []storage.TradeRecord) {
	for _, t := range trades {
		a.recordTrade(events.TradeAppliedEvent{
			BaseEvent:   events.NewBase(events.TradeApplied, t.ExecutedAt),
			Mint:        t.Mint,
			Trader:      t.Trader,
			Side:        string(t.Side),
			SolAmount:   t.SolAmount,
			TokenAmount: t.TokenAmount,
			PlatformFee: t.PlatformFee,
			Signature:   t.Signature,
			Version:     t.Version,
		})
	}
	a.logger.Info("Market stats restored", zap.Int("trades", len(trades)))
}

func (a *Aggregator) recordTrade(ev events.TradeAppliedEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.stats(ev.Mint)
	at := ev.Timestamp()
	if at.IsZero() {
		at = a.now()
	}
	st.volume = append(st.volume, volumePoint{at: at, lamports: ev.SolAmount})

	switch ev.Side {
	case "buy":
		st.balances[ev.Trader] += ev.TokenAmount
	case "sell":
		bal := st.balances[ev.Trader]
		if ev.TokenAmount >= bal {
			delete(st.balances, ev.Trader)
		} else {
			st.balances[ev.Trader] = bal - ev.TokenAmount
		}
	default:
		a.logger.Warn("Unknown trade side", zap.String("side", ev.Side), zap.String("mint", ev.Mint.String()))
	}
	a.pruneLocked(st)
}

// MarketData implements graduation.MarketDataSource.
func (a *Aggregator) MarketData(_ context.Context, mint solana.PublicKey) (graduation.MarketData, error) {
	now := a.now()

	a.mu.Lock()
	st, ok := a.tokens[mint]
	var md graduation.MarketData
	var createdAt time.Time
	if ok {
		a.pruneLocked(st)
		md.Volume24h = sumVolume(st.volume)
		md.Holders = len(st.balances)
		createdAt = st.createdAt
	}
	a.mu.Unlock()

	if createdAt.IsZero() && a.created != nil {
		if at, err := a.created.CreatedAt(mint); err == nil {
			createdAt = at
		}
	}
	if !createdAt.IsZero() && now.After(createdAt) {
		md.Age = now.Sub(createdAt)
	}
	md.AsOf = now
	return md, nil
}

// Balance returns the tracked token balance of a trader.
func (a *Aggregator) Balance(mint, trader solana.PublicKey) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st, ok := a.tokens[mint]
	if !ok {
		return 0
	}
	return st.balances[trader]
}

func (a *Aggregator) stats(mint solana.PublicKey) *tokenStats {
	st, ok := a.tokens[mint]
	if !ok {
		st = &tokenStats{balances: make(map[solana.PublicKey]uint64)}
		a.tokens[mint] = st
	}
	return st
}

// pruneLocked drops volume points that left the rolling window.
func (a *Aggregator) pruneLocked(st *tokenStats) {
	cutoff := a.now().Add(-a.window)
	kept := st.volume[:0]
	for _, p := range st.volume {
		if p.at.After(cutoff) {
			kept = append(kept, p)
		}
	}
	st.volume = kept
}

func sumVolume(points []volumePoint) uint64 {
	var total uint64
	for _, p := range points {
		total += p.lamports
	}
	return total
}
