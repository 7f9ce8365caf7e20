package graduation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
)

type orchestratorFixture struct {
	curves    *fakeCurves
	store     *fakeEventStore
	pools     *fakePools
	publisher *capturePublisher
	status    *StatusService
	orch      *Orchestrator
}

func newFixture(t *testing.T, pools *fakePools, cfg OrchestratorConfig) *orchestratorFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	f := &orchestratorFixture{
		curves:    newFakeCurves(),
		store:     newFakeEventStore(),
		pools:     pools,
		publisher: &capturePublisher{},
	}

	status, err := NewStatusService(f.curves, DefaultConfig(), logger, WithCache(NewMemoryCache(time.Minute)))
	require.NoError(t, err)
	f.status = status

	alloc, err := NewAllocator(DefaultAllocationConfig(), DefaultConfig().MinimumLiquidity, decimal.Zero)
	require.NoError(t, err)

	f.orch, err = NewOrchestrator(OrchestratorDeps{
		Curves:    f.curves,
		Store:     f.store,
		Status:    status,
		Allocator: alloc,
		Pools:     pools,
		Publisher: f.publisher,
	}, cfg, logger)
	require.NoError(t, err)
	return f
}

// addCurve registers a curve; buySol > 0 applies a buy of that many SOL.
func (f *orchestratorFixture) addCurve(t *testing.T, buySol uint64) *curve.Engine {
	t.Helper()
	engine, err := curve.NewEngine(solana.NewWallet().PublicKey(), curve.DefaultConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	if buySol > 0 {
		q, err := engine.QuoteBuy(buySol * curve.LamportsPerSol)
		require.NoError(t, err)
		require.NoError(t, engine.Apply(q))
	}
	f.curves.add(engine)
	return engine
}

// 1500 SOL поднимает капитализацию выше 69 000 SOL
const eligibleBuySol = 1500

func TestOrchestrator_GraduateIsIdempotent(t *testing.T) {
	f := newFixture(t, &fakePools{}, DefaultOrchestratorConfig())
	engine := f.addCurve(t, eligibleBuySol)
	mint := engine.Mint()

	first, err := f.orch.Graduate(context.Background(), mint)
	require.NoError(t, err)
	second, err := f.orch.Graduate(context.Background(), mint)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), f.pools.calls.Load())
	assert.Equal(t, f.pools.pool, first.PoolID)
	assert.Equal(t, IdempotencyKey(mint, 1), first.IdempotencyKey)
	assert.Equal(t, first.PreState.RealSolReserves*80/100, first.Allocation.SolForLiquidity)

	snap := engine.Snapshot()
	assert.True(t, snap.State.Graduated)
	_, err = engine.QuoteBuy(curve.LamportsPerSol)
	assert.ErrorIs(t, err, curve.ErrCurveGraduated)

	st, err := f.status.Status(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, PhaseGraduated, st.Phase)

	graduated := f.publisher.ofType(events.TokenGraduated)
	require.Len(t, graduated, 1)
	assert.Equal(t, mint, graduated[0].(events.TokenGraduatedEvent).Mint)
}

func TestOrchestrator_ConcurrentCallersCreateOnePool(t *testing.T) {
	f := newFixture(t, &fakePools{delay: 50 * time.Millisecond}, DefaultOrchestratorConfig())
	mint := f.addCurve(t, eligibleBuySol).Mint()

	const callers = 10
	results := make([]*Event, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.orch.Graduate(context.Background(), mint)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.Equal(t, int32(1), f.pools.calls.Load())
}

func TestOrchestrator_NotEligible(t *testing.T) {
	f := newFixture(t, &fakePools{}, DefaultOrchestratorConfig())
	mint := f.addCurve(t, 0).Mint()

	_, err := f.orch.Graduate(context.Background(), mint)

	var notEligible *NotEligibleError
	require.ErrorAs(t, err, &notEligible)
	assert.Equal(t, uint64(8*curve.LamportsPerSol), notEligible.MissingLiquidity)
	assert.True(t, notEligible.MissingMarketCap.IsPositive())
	assert.False(t, IsRetryable(err))
	assert.Zero(t, f.pools.calls.Load())
}

func TestOrchestrator_PoolFailureLeavesTokenEligible(t *testing.T) {
	f := newFixture(t, &fakePools{failures: 1}, DefaultOrchestratorConfig())
	engine := f.addCurve(t, eligibleBuySol)
	mint := engine.Mint()

	_, err := f.orch.Graduate(context.Background(), mint)
	var poolErr *PoolCreationError
	require.ErrorAs(t, err, &poolErr)
	assert.ErrorIs(t, err, errPoolDown)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 1, poolErr.Attempts)

	assert.False(t, engine.Snapshot().State.Graduated)
	assert.False(t, engine.Snapshot().Graduating)
	_, err = engine.QuoteBuy(curve.LamportsPerSol)
	assert.NoError(t, err, "trading resumes after a failed pool creation")
	_, err = f.store.GetGraduation(context.Background(), mint)
	assert.Error(t, err)
	assert.Len(t, f.publisher.ofType(events.GraduationFailed), 1)

	st, err := f.status.Status(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, PhaseEligible, st.Phase)

	ev, err := f.orch.Graduate(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.pools.calls.Load())
	assert.Equal(t, mint, ev.Mint)
}

func TestOrchestrator_RetriesWithSameIdempotencyKey(t *testing.T) {
	cfg := DefaultOrchestratorConfig()
	cfg.PoolCreateAttempts = 3
	cfg.RetryInitialInterval = time.Millisecond
	f := newFixture(t, &fakePools{failures: 2}, cfg)
	mint := f.addCurve(t, eligibleBuySol).Mint()

	ev, err := f.orch.Graduate(context.Background(), mint)
	require.NoError(t, err)

	assert.Equal(t, int32(3), f.pools.calls.Load())
	require.Len(t, f.pools.keys, 3)
	for _, key := range f.pools.keys {
		assert.Equal(t, ev.IdempotencyKey, key)
	}
}

func TestOrchestrator_PoolCreationTimeout(t *testing.T) {
	cfg := DefaultOrchestratorConfig()
	cfg.PoolCreateTimeout = 20 * time.Millisecond
	f := newFixture(t, &fakePools{block: true}, cfg)
	engine := f.addCurve(t, eligibleBuySol)

	start := time.Now()
	_, err := f.orch.Graduate(context.Background(), engine.Mint())

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, IsRetryable(err))
	assert.False(t, engine.Snapshot().State.Graduated)
	assert.False(t, engine.Snapshot().Graduating)
}

func TestOrchestrator_TradingSuspendedDuringPoolCreation(t *testing.T) {
	pools := &fakePools{}
	f := newFixture(t, pools, DefaultOrchestratorConfig())
	engine := f.addCurve(t, eligibleBuySol)
	mint := engine.Mint()

	// продажа 90% выпущенных токенов, котировка снята до начала градуации
	dump := engine.Snapshot().State.RealTokenReserves * 9 / 10
	early, err := engine.QuoteSell(dump)
	require.NoError(t, err)

	var quoteErr, applyErr error
	var during curve.Snapshot
	pools.during = func(context.Context, PoolRequest) {
		_, quoteErr = engine.QuoteSell(dump)
		applyErr = engine.Apply(early)
		during = engine.Snapshot()
	}

	ev, err := f.orch.Graduate(context.Background(), mint)
	require.NoError(t, err)

	assert.ErrorIs(t, quoteErr, curve.ErrCurveGraduating)
	assert.ErrorIs(t, applyErr, curve.ErrCurveGraduating)
	assert.True(t, during.Graduating)
	assert.Equal(t, ev.PreState, during.State)

	assert.Equal(t, ev.PreState.Version, ev.PostState.Version)
	assert.Equal(t, ev.PreState.RealSolReserves, ev.PostState.RealSolReserves)
	alloc := ev.Allocation
	assert.LessOrEqual(t, alloc.SolForLiquidity+alloc.RemainingSol+alloc.GraduationFee, ev.PostState.RealSolReserves)

	snap := engine.Snapshot()
	assert.True(t, snap.State.Graduated)
	assert.False(t, snap.Graduating)
	assert.ErrorIs(t, engine.Apply(early), curve.ErrCurveGraduated)
}

func TestOrchestrator_CommitRejectsMovedCurve(t *testing.T) {
	pools := &fakePools{}
	f := newFixture(t, pools, DefaultOrchestratorConfig())
	engine := f.addCurve(t, eligibleBuySol)

	pools.during = func(context.Context, PoolRequest) {
		moved := engine.Snapshot().State
		moved.RealSolReserves /= 2
		moved.Version += 3
		assert.NoError(t, engine.Restore(moved))
	}

	_, err := f.orch.Graduate(context.Background(), engine.Mint())
	assert.ErrorIs(t, err, ErrInconsistentState)

	_, err = f.store.GetGraduation(context.Background(), engine.Mint())
	assert.Error(t, err)
	assert.Empty(t, f.publisher.ofType(events.TokenGraduated))

	// пул создан, поэтому кривая остается закрытой для торговли
	snap := engine.Snapshot()
	assert.False(t, snap.State.Graduated)
	assert.True(t, snap.Graduating)
}

func TestOrchestrator_GateFailureSkipsPoolCreation(t *testing.T) {
	f := newFixture(t, &fakePools{}, DefaultOrchestratorConfig())
	engine := f.addCurve(t, eligibleBuySol)
	errClosed := errors.New("desk closed")
	f.orch.deps.Gate = gateFunc(func(context.Context, solana.PublicKey) (curve.Snapshot, error) {
		return curve.Snapshot{}, errClosed
	})

	_, err := f.orch.Graduate(context.Background(), engine.Mint())
	assert.ErrorIs(t, err, errClosed)
	assert.Zero(t, f.pools.calls.Load())
	assert.False(t, engine.Snapshot().Graduating)
}

func TestOrchestrator_CancelledCallerDoesNotAbortSharedGraduation(t *testing.T) {
	f := newFixture(t, &fakePools{delay: 100 * time.Millisecond}, DefaultOrchestratorConfig())
	engine := f.addCurve(t, eligibleBuySol)
	mint := engine.Mint()

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.orch.Graduate(ctx, mint)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return f.pools.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	ev, err := f.orch.Graduate(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, mint, ev.Mint)
	assert.Equal(t, int32(1), f.pools.calls.Load())
	assert.True(t, engine.Snapshot().State.Graduated)
}

func TestOrchestrator_ReconcileClosesOpenCurves(t *testing.T) {
	f := newFixture(t, &fakePools{}, DefaultOrchestratorConfig())
	engine := f.addCurve(t, eligibleBuySol)
	require.NoError(t, f.store.InsertGraduation(context.Background(), &Event{Mint: engine.Mint()}))

	closed, err := f.orch.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, closed)
	assert.True(t, engine.Snapshot().State.Graduated)

	closed, err = f.orch.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, closed)
}

func TestOrchestrator_LiquidityLock(t *testing.T) {
	cfg := DefaultOrchestratorConfig()
	cfg.LiquidityLockDays = 30
	f := newFixture(t, &fakePools{}, cfg)
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f.orch.now = func() time.Time { return fixed }

	ev, err := f.orch.Graduate(context.Background(), f.addCurve(t, eligibleBuySol).Mint())
	require.NoError(t, err)
	assert.Equal(t, fixed, ev.CreatedAt)
	assert.Equal(t, fixed.AddDate(0, 0, 30), ev.LiquidityLockedUntil)
}

func TestSweeper_GraduatesOnlyEligible(t *testing.T) {
	f := newFixture(t, &fakePools{}, DefaultOrchestratorConfig())
	eligible := f.addCurve(t, eligibleBuySol)
	pending := f.addCurve(t, 10)

	sweeper := NewSweeper(f.orch, f.status, f.curves, time.Minute, 2, zaptest.NewLogger(t))
	n, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.True(t, eligible.Snapshot().State.Graduated)
	assert.False(t, pending.Snapshot().State.Graduated)

	n, err = sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int32(1), f.pools.calls.Load())
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(ErrInsufficientLiquidity))
	assert.False(t, IsRetryable(&NotEligibleError{}))
	assert.True(t, IsRetryable(&PoolCreationError{Err: errPoolDown}))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
}

type gateFunc func(ctx context.Context, mint solana.PublicKey) (curve.Snapshot, error)

func (g gateFunc) Suspend(ctx context.Context, mint solana.PublicKey) (curve.Snapshot, error) {
	return g(ctx, mint)
}
