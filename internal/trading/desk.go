// internal/trading/desk.go
package trading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/utils/metrics"
)

type request struct {
	ctx     context.Context
	order   Order
	suspend bool
	reply   chan result
}

type result struct {
	fill *Fill
	snap curve.Snapshot
	err  error
}

// DeskOption configures the desk.
type DeskOption func(*Desk)

// WithTradeLog records every applied trade.
func WithTradeLog(log TradeLog) DeskOption {
	return func(d *Desk) { d.trades = log }
}

// Desk сериализует сделки по каждому токену: одна горутина-актор на mint
// выполняет котировку, расчет во внешней системе, ожидание подтверждения и Apply.
type Desk struct {
	curves     Curves
	settlement Settlement
	publisher  events.Publisher
	metrics    *metrics.Collector
	trades     TradeLog
	cfg        DeskConfig
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	actors map[solana.PublicKey]chan request
	closed bool
}

// NewDesk creates a trade desk. publisher and collector may be nil.
func NewDesk(curves Curves, settlement Settlement, publisher events.Publisher, collector *metrics.Collector, cfg DeskConfig, logger *zap.Logger, opts ...DeskOption) *Desk {
	if cfg.SettlementTimeout <= 0 {
		cfg.SettlementTimeout = DefaultDeskConfig().SettlementTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultDeskConfig().QueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Desk{
		curves:     curves,
		settlement: settlement,
		publisher:  publisher,
		metrics:    collector,
		cfg:        cfg,
		logger:     logger.Named("desk"),
		ctx:        ctx,
		cancel:     cancel,
		actors:     make(map[solana.PublicKey]chan request),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Quote returns a quote without touching the actor; quotes never mutate state.
func (d *Desk) Quote(mint solana.PublicKey, side curve.Side, amount uint64) (*curve.TradeQuote, error) {
	engine, err := d.curves.Engine(mint)
	if err != nil {
		return nil, err
	}
	q, err := quote(engine, side, amount)
	d.metrics.RecordQuote(string(side), outcome(err))
	return q, err
}

// Execute queues the order on the token's actor and waits for the outcome.
// Если ctx отменен после отправки в расчет, сделка все равно будет доведена актором до конца.
func (d *Desk) Execute(ctx context.Context, order Order) (*Fill, error) {
	if order.Amount == 0 {
		return nil, fmt.Errorf("%w: order amount must be positive", curve.ErrInvalidAmount)
	}
	if order.Side != curve.SideBuy && order.Side != curve.SideSell {
		return nil, fmt.Errorf("%w: unknown side %q", curve.ErrInvalidAmount, order.Side)
	}
	if _, err := d.curves.Engine(order.Mint); err != nil {
		return nil, err
	}

	res, err := d.send(ctx, order.Mint, request{ctx: ctx, order: order})
	if err != nil {
		return nil, err
	}
	return res.fill, res.err
}

// Suspend закрывает кривую для торговли через очередь актора: заявка, уже ушедшая
// в расчет, успевает примениться до заморозки. Возвращает замороженный снимок.
func (d *Desk) Suspend(ctx context.Context, mint solana.PublicKey) (curve.Snapshot, error) {
	if _, err := d.curves.Engine(mint); err != nil {
		return curve.Snapshot{}, err
	}
	res, err := d.send(ctx, mint, request{ctx: ctx, suspend: true})
	if err != nil {
		return curve.Snapshot{}, err
	}
	return res.snap, res.err
}

func (d *Desk) send(ctx context.Context, mint solana.PublicKey, req request) (result, error) {
	queue, err := d.actorFor(mint)
	if err != nil {
		return result{}, err
	}

	req.reply = make(chan result, 1)
	select {
	case queue <- req:
	case <-ctx.Done():
		return result{}, ctx.Err()
	case <-d.ctx.Done():
		return result{}, ErrDeskClosed
	}

	select {
	case res := <-req.reply:
		return res, nil
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

// Shutdown stops all actors after their current order.
func (d *Desk) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.logger.Info("Trade desk stopped")
		return nil
	case <-ctx.Done():
		d.logger.Warn("Trade desk shutdown timeout")
		return ctx.Err()
	}
}

func (d *Desk) actorFor(mint solana.PublicKey) (chan request, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeskClosed
	}
	if queue, ok := d.actors[mint]; ok {
		return queue, nil
	}
	queue := make(chan request, d.cfg.QueueSize)
	d.actors[mint] = queue
	d.wg.Add(1)
	go d.run(mint, queue)
	d.logger.Debug("Actor started", zap.String("mint", mint.String()))
	return queue, nil
}

func (d *Desk) run(mint solana.PublicKey, queue chan request) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			// Оставшиеся заявки отклоняются, состояние не меняется
			for {
				select {
				case req := <-queue:
					req.reply <- result{err: ErrDeskClosed}
				default:
					return
				}
			}
		case req := <-queue:
			if req.suspend {
				snap, err := d.suspend(mint)
				req.reply <- result{snap: snap, err: err}
				continue
			}
			fill, err := d.process(req.ctx, mint, req.order)
			req.reply <- result{fill: fill, err: err}
		}
	}
}

func (d *Desk) suspend(mint solana.PublicKey) (curve.Snapshot, error) {
	engine, err := d.curves.Engine(mint)
	if err != nil {
		return curve.Snapshot{}, err
	}
	return engine.BeginGraduation()
}

func (d *Desk) process(ctx context.Context, mint solana.PublicKey, order Order) (*Fill, error) {
	start := time.Now()
	side := string(order.Side)
	logger := d.logger.With(
		zap.String("mint", mint.String()),
		zap.String("trader", order.Trader.String()),
		zap.String("side", side))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	engine, err := d.curves.Engine(mint)
	if err != nil {
		return nil, err
	}

	// 1. Котировка от текущего состояния
	q, err := quote(engine, order.Side, order.Amount)
	d.metrics.RecordQuote(side, outcome(err))
	if err != nil {
		return nil, err
	}
	if order.MaxSlippagePercent.IsPositive() && q.SlippagePercent.GreaterThan(order.MaxSlippagePercent) {
		return nil, fmt.Errorf("%w: %s%% > %s%%", ErrSlippageExceeded,
			q.SlippagePercent.StringFixed(4), order.MaxSlippagePercent.String())
	}

	// 2. Расчет и ожидание подтверждения
	settleCtx, cancel := context.WithTimeout(ctx, d.cfg.SettlementTimeout)
	receipt, err := d.settlement.Submit(settleCtx, SettlementRequest{Trader: order.Trader, Quote: q})
	cancel()
	if err != nil {
		d.metrics.RecordTrade(ctx, side, time.Since(start), false)
		logger.Warn("Settlement failed", zap.Error(err))
		d.publish(events.TradeFailedEvent{
			BaseEvent: events.NewBase(events.TradeFailed, time.Now()),
			Mint:      mint,
			Trader:    order.Trader,
			Side:      side,
			Error:     err,
		}, logger)
		return nil, fmt.Errorf("%w: %w", ErrSettlementFailed, err)
	}

	// 3. Применение только после подтверждения
	if err := engine.Apply(q); err != nil {
		d.metrics.RecordTrade(ctx, side, time.Since(start), false)
		logger.Error("Settled trade rejected by curve",
			zap.String("signature", receipt.Signature.String()),
			zap.Error(err))
		return nil, fmt.Errorf("%w (%s): %w", ErrUnappliedSettlement, receipt.Signature, err)
	}

	snap := engine.Snapshot()
	if err := d.curves.Save(context.WithoutCancel(ctx), mint); err != nil {
		logger.Error("Failed to persist curve state", zap.Error(err))
	}

	price, err := snap.Price()
	if err != nil {
		price = q.SpotPriceAfter
	}

	executedAt := time.Now()
	if d.trades != nil {
		rec := storage.TradeRecord{
			Mint:        mint,
			Trader:      order.Trader,
			Side:        order.Side,
			SolAmount:   q.SolDelta,
			TokenAmount: q.TokenDelta,
			PlatformFee: q.PlatformFee,
			Signature:   receipt.Signature,
			Version:     snap.State.Version,
			ExecutedAt:  executedAt,
		}
		if err := d.trades.InsertTrade(context.WithoutCancel(ctx), rec); err != nil {
			logger.Error("Failed to record trade", zap.Uint64("version", rec.Version), zap.Error(err))
		}
	}

	d.metrics.RecordTrade(ctx, side, time.Since(start), true)
	d.metrics.UpdateCurveReserves(mint.String(), snap.State.RealSolReserves, snap.State.RealTokenReserves)

	d.publish(events.TradeAppliedEvent{
		BaseEvent:   events.NewBase(events.TradeApplied, executedAt),
		Mint:        mint,
		Trader:      order.Trader,
		Side:        side,
		SolAmount:   q.SolDelta,
		TokenAmount: q.TokenDelta,
		PlatformFee: q.PlatformFee,
		Signature:   receipt.Signature,
		Version:     snap.State.Version,
		Price:       price,
	}, logger)

	logger.Info("Trade applied",
		zap.Uint64("input", q.InputAmount),
		zap.Uint64("output", q.OutputAmount),
		zap.Uint64("fee", q.PlatformFee),
		zap.String("signature", receipt.Signature.String()),
		zap.Uint64("version", snap.State.Version),
		zap.Duration("elapsed", time.Since(start)))

	return &Fill{
		Quote:     q,
		Receipt:   receipt,
		Version:   snap.State.Version,
		Price:     price,
		Trader:    order.Trader,
		Submitted: start,
	}, nil
}

func (d *Desk) publish(e events.Event, logger *zap.Logger) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(e); err != nil {
		logger.Warn("Failed to publish event", zap.String("event_type", string(e.Type())), zap.Error(err))
	}
}

func quote(engine *curve.Engine, side curve.Side, amount uint64) (*curve.TradeQuote, error) {
	switch side {
	case curve.SideBuy:
		return engine.QuoteBuy(amount)
	case curve.SideSell:
		return engine.QuoteSell(amount)
	default:
		return nil, fmt.Errorf("%w: unknown side %q", curve.ErrInvalidAmount, side)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, curve.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, curve.ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	case errors.Is(err, curve.ErrCurveGraduated):
		return "graduated"
	case errors.Is(err, curve.ErrCurveGraduating):
		return "graduating"
	case errors.Is(err, curve.ErrPoolExhausted), errors.Is(err, curve.ErrDivisionByZero):
		return "exhausted"
	default:
		return "error"
	}
}
