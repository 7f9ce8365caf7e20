package trading

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/storage/memory"
	"github.com/rovshanmuradov/launchpad/internal/utils/metrics"
)

type fakeSettlement struct {
	calls atomic.Int32
	fail  error
	block bool

	// entered получает сигнал при входе в расчет, release отпускает его
	entered chan struct{}
	release chan struct{}

	// versionAtSubmit is the engine version observed while the trade is being settled
	engine          *curve.Engine
	mu              sync.Mutex
	versionAtSubmit []uint64
	baseVersions    []uint64
}

func (s *fakeSettlement) Submit(ctx context.Context, req SettlementRequest) (Receipt, error) {
	s.calls.Add(1)
	if s.engine != nil {
		s.mu.Lock()
		s.versionAtSubmit = append(s.versionAtSubmit, s.engine.Snapshot().State.Version)
		s.baseVersions = append(s.baseVersions, req.Quote.BaseVersion)
		s.mu.Unlock()
	}
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		}
	}
	if s.block {
		<-ctx.Done()
		return Receipt{}, ctx.Err()
	}
	if s.fail != nil {
		return Receipt{}, s.fail
	}
	return Receipt{Signature: solana.Signature{9}, Slot: 1, ConfirmedAt: time.Now()}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) count(t events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type() == t {
			n++
		}
	}
	return n
}

type deskFixture struct {
	store    *memory.Store
	registry *launchpad.Registry
	engine   *curve.Engine
	settle   *fakeSettlement
	events   *recorder
	desk     *Desk
}

func newDeskFixture(t *testing.T, settle *fakeSettlement, cfg DeskConfig) *deskFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := memory.NewStore()
	registry, err := launchpad.NewRegistry(store, curve.DefaultConfig(), nil, logger)
	require.NoError(t, err)

	engine, err := registry.CreateToken(context.Background(), launchpad.TokenParams{
		Creator: solana.NewWallet().PublicKey(),
		Symbol:  "test",
	})
	require.NoError(t, err)
	settle.engine = engine

	rec := &recorder{}
	desk := NewDesk(registry, settle, rec, metrics.NewCollector(prometheus.NewRegistry()), cfg, logger,
		WithTradeLog(store))
	t.Cleanup(func() { _ = desk.Shutdown(context.Background()) })

	return &deskFixture{store: store, registry: registry, engine: engine, settle: settle, events: rec, desk: desk}
}

func buyOrder(mint solana.PublicKey, lamports uint64) Order {
	return Order{Mint: mint, Trader: solana.NewWallet().PublicKey(), Side: curve.SideBuy, Amount: lamports}
}

func TestDesk_ExecuteAppliesAfterSettlement(t *testing.T) {
	f := newDeskFixture(t, &fakeSettlement{}, DefaultDeskConfig())
	mint := f.engine.Mint()

	fill, err := f.desk.Execute(context.Background(), buyOrder(mint, 10*curve.LamportsPerSol))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), fill.Version)
	assert.Equal(t, uint64(266_253_301_922_257), fill.Quote.OutputAmount)
	assert.Equal(t, solana.Signature{9}, fill.Receipt.Signature)

	// во время расчета состояние еще не изменено
	assert.Equal(t, []uint64{0}, f.settle.versionAtSubmit)

	snap := f.engine.Snapshot()
	assert.Equal(t, uint64(9_901_000_000), snap.State.RealSolReserves)

	rec, err := f.store.GetCurve(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, snap.State, rec.State)
	assert.Equal(t, 1, f.events.count(events.TradeApplied))
}

func TestDesk_SettlementFailureLeavesStateUntouched(t *testing.T) {
	boom := errors.New("transaction dropped")
	f := newDeskFixture(t, &fakeSettlement{fail: boom}, DefaultDeskConfig())

	_, err := f.desk.Execute(context.Background(), buyOrder(f.engine.Mint(), curve.LamportsPerSol))

	assert.ErrorIs(t, err, ErrSettlementFailed)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, curve.State{}, f.engine.Snapshot().State)
	assert.Equal(t, 1, f.events.count(events.TradeFailed))
	assert.Zero(t, f.events.count(events.TradeApplied))
}

func TestDesk_SettlementTimeout(t *testing.T) {
	f := newDeskFixture(t, &fakeSettlement{block: true}, DeskConfig{SettlementTimeout: 20 * time.Millisecond})

	_, err := f.desk.Execute(context.Background(), buyOrder(f.engine.Mint(), curve.LamportsPerSol))

	assert.ErrorIs(t, err, ErrSettlementFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, f.engine.Snapshot().State.Version)
}

func TestDesk_ConcurrentOrdersAreSerialized(t *testing.T) {
	f := newDeskFixture(t, &fakeSettlement{}, DefaultDeskConfig())
	mint := f.engine.Mint()

	const orders = 25
	fills := make([]*Fill, orders)
	errs := make([]error, orders)
	var wg sync.WaitGroup
	for i := 0; i < orders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fills[i], errs[i] = f.desk.Execute(context.Background(), buyOrder(mint, uint64(i+1)*curve.LamportsPerSol/10))
		}(i)
	}
	wg.Wait()

	var solIn uint64
	for i := 0; i < orders; i++ {
		require.NoError(t, errs[i])
		solIn += fills[i].Quote.SolDelta
	}

	snap := f.engine.Snapshot()
	assert.Equal(t, uint64(orders), snap.State.Version)
	assert.Equal(t, solIn, snap.State.RealSolReserves)

	// каждая котировка рассчитана от версии, действовавшей во время расчета
	f.settle.mu.Lock()
	defer f.settle.mu.Unlock()
	assert.Equal(t, f.settle.baseVersions, f.settle.versionAtSubmit)
}

func TestDesk_SlippageGuard(t *testing.T) {
	f := newDeskFixture(t, &fakeSettlement{}, DefaultDeskConfig())
	order := buyOrder(f.engine.Mint(), 10*curve.LamportsPerSol)
	order.MaxSlippagePercent = decimal.RequireFromString("0.5")

	_, err := f.desk.Execute(context.Background(), order)

	assert.ErrorIs(t, err, ErrSlippageExceeded)
	assert.Zero(t, f.settle.calls.Load())
}

func TestDesk_RejectsInvalidOrders(t *testing.T) {
	f := newDeskFixture(t, &fakeSettlement{}, DefaultDeskConfig())

	_, err := f.desk.Execute(context.Background(), buyOrder(f.engine.Mint(), 0))
	assert.ErrorIs(t, err, curve.ErrInvalidAmount)

	_, err = f.desk.Execute(context.Background(), Order{Mint: f.engine.Mint(), Side: "hold", Amount: 1})
	assert.ErrorIs(t, err, curve.ErrInvalidAmount)

	_, err = f.desk.Execute(context.Background(), Order{Mint: f.engine.Mint(), Side: curve.SideSell, Amount: 1})
	assert.ErrorIs(t, err, curve.ErrInsufficientLiquidity)
	assert.Zero(t, f.settle.calls.Load())
}

func TestDesk_GraduatedCurveRejectsOrders(t *testing.T) {
	f := newDeskFixture(t, &fakeSettlement{}, DefaultDeskConfig())
	f.engine.MarkGraduated()

	_, err := f.desk.Execute(context.Background(), buyOrder(f.engine.Mint(), curve.LamportsPerSol))
	assert.ErrorIs(t, err, curve.ErrCurveGraduated)

	_, err = f.desk.Quote(f.engine.Mint(), curve.SideBuy, curve.LamportsPerSol)
	assert.ErrorIs(t, err, curve.ErrCurveGraduated)
}

func TestDesk_Shutdown(t *testing.T) {
	f := newDeskFixture(t, &fakeSettlement{}, DefaultDeskConfig())
	require.NoError(t, f.desk.Shutdown(context.Background()))

	_, err := f.desk.Execute(context.Background(), buyOrder(f.engine.Mint(), curve.LamportsPerSol))
	assert.ErrorIs(t, err, ErrDeskClosed)
}

func TestDesk_RecordsAppliedTrades(t *testing.T) {
	f := newDeskFixture(t, &fakeSettlement{}, DefaultDeskConfig())
	order := buyOrder(f.engine.Mint(), curve.LamportsPerSol)

	fill, err := f.desk.Execute(context.Background(), order)
	require.NoError(t, err)

	trades, err := f.store.ListTrades(context.Background())
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, order.Trader, trades[0].Trader)
	assert.Equal(t, curve.SideBuy, trades[0].Side)
	assert.Equal(t, fill.Quote.TokenDelta, trades[0].TokenAmount)
	assert.Equal(t, fill.Quote.SolDelta, trades[0].SolAmount)
	assert.Equal(t, fill.Version, trades[0].Version)
	assert.Equal(t, fill.Receipt.Signature, trades[0].Signature)

	// отклоненная заявка не попадает в журнал
	f.settle.fail = errors.New("rpc down")
	_, err = f.desk.Execute(context.Background(), buyOrder(f.engine.Mint(), curve.LamportsPerSol))
	require.Error(t, err)
	trades, err = f.store.ListTrades(context.Background())
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestDesk_SuspendWaitsForInFlightOrder(t *testing.T) {
	settle := &fakeSettlement{entered: make(chan struct{}, 1), release: make(chan struct{})}
	f := newDeskFixture(t, settle, DefaultDeskConfig())
	mint := f.engine.Mint()

	type outcome struct {
		fill *Fill
		err  error
	}
	buyDone := make(chan outcome, 1)
	go func() {
		fill, err := f.desk.Execute(context.Background(), buyOrder(mint, curve.LamportsPerSol))
		buyDone <- outcome{fill, err}
	}()
	<-settle.entered

	type suspended struct {
		snap curve.Snapshot
		err  error
	}
	suspendDone := make(chan suspended, 1)
	go func() {
		snap, err := f.desk.Suspend(context.Background(), mint)
		suspendDone <- suspended{snap, err}
	}()

	select {
	case <-suspendDone:
		t.Fatal("suspend returned while a trade was still settling")
	case <-time.After(50 * time.Millisecond):
	}

	close(settle.release)
	buy := <-buyDone
	require.NoError(t, buy.err)

	frozen := <-suspendDone
	require.NoError(t, frozen.err)
	assert.True(t, frozen.snap.Graduating)
	assert.Equal(t, buy.fill.Version, frozen.snap.State.Version)
	assert.Equal(t, f.engine.Snapshot().State, frozen.snap.State)

	_, err := f.desk.Execute(context.Background(), buyOrder(mint, curve.LamportsPerSol))
	assert.ErrorIs(t, err, curve.ErrCurveGraduating)
	_, err = f.desk.Quote(mint, curve.SideBuy, curve.LamportsPerSol)
	assert.ErrorIs(t, err, curve.ErrCurveGraduating)
	assert.Equal(t, int32(1), settle.calls.Load())

	f.engine.AbortGraduation()
	_, err = f.desk.Execute(context.Background(), buyOrder(mint, curve.LamportsPerSol))
	assert.NoError(t, err)
}

func TestDesk_SuspendUnknownMint(t *testing.T) {
	f := newDeskFixture(t, &fakeSettlement{}, DefaultDeskConfig())
	_, err := f.desk.Suspend(context.Background(), solana.NewWallet().PublicKey())
	assert.Error(t, err)
}
