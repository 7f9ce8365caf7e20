// internal/graduation/orchestrator.go
package graduation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/utils/metrics"
)

// OrchestratorConfig управляет вызовом внешнего создания пула.
type OrchestratorConfig struct {
	PoolCreateTimeout    time.Duration
	PoolCreateAttempts   int // 1 = без повторов
	RetryInitialInterval time.Duration
	LiquidityLockDays    int
}

// DefaultOrchestratorConfig returns a 30s timeout and a single attempt.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		PoolCreateTimeout:    30 * time.Second,
		PoolCreateAttempts:   1,
		RetryInitialInterval: 500 * time.Millisecond,
	}
}

// OrchestratorDeps are the collaborators of the orchestrator.
// Gate, Publisher, Notifier and Metrics are optional; without Gate the engine is suspended directly.
type OrchestratorDeps struct {
	Curves    Curves
	Gate      TradingGate
	Store     EventStore
	Status    *StatusService
	Allocator *Allocator
	Pools     PoolCreator
	Publisher events.Publisher
	Notifier  Notifier
	Metrics   *metrics.Collector
}

// Orchestrator выполняет однократный идемпотентный выпуск токена на DEX.
type Orchestrator struct {
	deps   OrchestratorDeps
	cfg    OrchestratorConfig
	logger *zap.Logger
	now    func() time.Time

	group   singleflight.Group
	locksMu sync.Mutex
	locks   map[solana.PublicKey]*sync.Mutex
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(deps OrchestratorDeps, cfg OrchestratorConfig, logger *zap.Logger) (*Orchestrator, error) {
	if deps.Curves == nil || deps.Store == nil || deps.Status == nil || deps.Allocator == nil || deps.Pools == nil {
		return nil, fmt.Errorf("%w: orchestrator requires curves, store, status, allocator and pool creator", ErrInvalidConfig)
	}
	if cfg.PoolCreateTimeout <= 0 {
		cfg.PoolCreateTimeout = DefaultOrchestratorConfig().PoolCreateTimeout
	}
	if cfg.PoolCreateAttempts < 1 {
		cfg.PoolCreateAttempts = 1
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = DefaultOrchestratorConfig().RetryInitialInterval
	}
	if deps.Gate == nil {
		deps.Gate = engineGate{curves: deps.Curves}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		logger: logger.Named("orchestrator"),
		now:    time.Now,
		locks:  make(map[solana.PublicKey]*sync.Mutex),
	}, nil
}

// IdempotencyKey derives the pool-creation key from the mint and the evaluated state version.
func IdempotencyKey(mint solana.PublicKey, version uint64) string {
	return fmt.Sprintf("graduate:%s:%d", mint, version)
}

// Graduate выпускает токен на DEX. Повторный вызов возвращает уже записанное
// событие без повторного создания пула; параллельные вызовы для одного mint схлопываются.
// Общая работа не отменяется вместе с ctx вызывающего: каждый вызывающий ждет только свой ctx.
func (o *Orchestrator) Graduate(ctx context.Context, mint solana.PublicKey) (*Event, error) {
	work := context.WithoutCancel(ctx)
	ch := o.group.DoChan(mint.String(), func() (interface{}, error) {
		return o.graduate(work, mint)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			o.logger.Debug("Graduation call shared with concurrent caller", zap.String("mint", mint.String()))
		}
		ev := *res.Val.(*Event)
		return &ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) graduate(ctx context.Context, mint solana.PublicKey) (*Event, error) {
	logger := o.logger.With(zap.String("mint", mint.String()))

	// 1. Событие уже есть - идемпотентный успех
	existing, err := o.deps.Store.GetGraduation(ctx, mint)
	switch {
	case err == nil:
		o.deps.Metrics.RecordGraduation("already_graduated")
		o.ensureClosed(ctx, mint)
		return existing, nil
	case !errors.Is(err, storage.ErrNotFound):
		o.deps.Metrics.RecordGraduation("error")
		return nil, fmt.Errorf("load graduation event: %w", err)
	}

	// 2. Свежая оценка без кэша; неподходящий токен не останавливает торговлю
	status, snap, err := o.deps.Status.Fresh(ctx, mint)
	if err != nil {
		o.deps.Metrics.RecordGraduation("error")
		return nil, err
	}
	if snap.State.Graduated {
		o.deps.Metrics.RecordGraduation("error")
		return nil, fmt.Errorf("%w: %s", ErrInconsistentState, mint)
	}
	if !status.IsEligible {
		o.deps.Metrics.RecordGraduation("not_eligible")
		return nil, notEligible(mint, status)
	}

	// 3. Торговля закрыта до создания пула; распределение считается от замороженного снимка
	snap, err = o.deps.Gate.Suspend(ctx, mint)
	if err != nil {
		o.deps.Metrics.RecordGraduation("error")
		if errors.Is(err, curve.ErrCurveGraduated) {
			return nil, fmt.Errorf("%w: %s", ErrInconsistentState, mint)
		}
		return nil, fmt.Errorf("suspend trading: %w", err)
	}
	if status, err = o.deps.Status.EvaluateSnapshot(ctx, snap); err != nil {
		o.resume(mint, logger)
		o.deps.Metrics.RecordGraduation("error")
		return nil, err
	}
	if !status.IsEligible {
		o.resume(mint, logger)
		o.deps.Metrics.RecordGraduation("not_eligible")
		return nil, notEligible(mint, status)
	}

	alloc, err := o.deps.Allocator.Allocate(snap)
	if err != nil {
		o.resume(mint, logger)
		o.deps.Metrics.RecordGraduation("insufficient_liquidity")
		return nil, err
	}

	// 4. Внешний вызов без удержания блокировки токена
	req := PoolRequest{
		Mint:           mint,
		TokenAmount:    alloc.TokensForLiquidity,
		SolAmount:      alloc.SolForLiquidity,
		IdempotencyKey: IdempotencyKey(mint, snap.State.Version),
	}
	logger.Info("Creating DEX pool",
		zap.Uint64("sol_amount", req.SolAmount),
		zap.Uint64("token_amount", req.TokenAmount),
		zap.Uint64("version", snap.State.Version),
		zap.String("idempotency_key", req.IdempotencyKey))

	res, attempts, err := o.createPool(ctx, req, logger)
	if err != nil {
		o.resume(mint, logger)
		o.deps.Metrics.RecordGraduation("pool_failed")
		perr := &PoolCreationError{Mint: mint, Attempts: attempts, Err: err}
		logger.Error("Pool creation failed", zap.Int("attempts", attempts), zap.Error(err))
		o.publish(events.GraduationFailedEvent{
			BaseEvent: events.NewBase(events.GraduationFailed, o.now()),
			Mint:      mint,
			Retryable: true,
			Error:     perr,
		}, logger)
		return nil, perr
	}

	// 5. Терминальная запись под блокировкой токена.
	// При ошибке записи кривая остается закрытой: пул уже существует, повтор пройдет с тем же ключом.
	return o.commit(ctx, mint, snap, alloc, req.IdempotencyKey, res, logger)
}

func notEligible(mint solana.PublicKey, status Status) *NotEligibleError {
	return &NotEligibleError{
		Mint:             mint,
		MissingLiquidity: status.MissingLiquidity,
		MissingMarketCap: status.MissingMarketCap,
		Status:           status,
	}
}

// resume снова открывает торговлю после неудачной попытки
func (o *Orchestrator) resume(mint solana.PublicKey, logger *zap.Logger) {
	engine, err := o.deps.Curves.Engine(mint)
	if err != nil {
		logger.Error("Cannot resume trading", zap.Error(err))
		return
	}
	engine.AbortGraduation()
	o.deps.Status.Invalidate(context.Background(), mint)
}

func (o *Orchestrator) createPool(ctx context.Context, req PoolRequest, logger *zap.Logger) (PoolResult, int, error) {
	attempts := 0
	operation := func() (PoolResult, error) {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.PoolCreateTimeout)
		defer cancel()

		start := time.Now()
		res, err := o.deps.Pools.CreatePool(callCtx, req)
		o.deps.Metrics.RecordPoolCreation(time.Since(start), err == nil)
		return res, err
	}

	backoffPolicy := backoff.NewExponentialBackOff()
	backoffPolicy.InitialInterval = o.cfg.RetryInitialInterval
	backoffPolicy.MaxInterval = o.cfg.RetryInitialInterval * 10

	notify := func(err error, duration time.Duration) {
		logger.Warn("Повтор создания пула после ошибки", zap.Error(err), zap.Duration("backoff", duration))
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoffPolicy),
		backoff.WithMaxTries(uint(o.cfg.PoolCreateAttempts)),
		backoff.WithNotify(notify))
	return res, attempts, err
}

func (o *Orchestrator) commit(ctx context.Context, mint solana.PublicKey, snap curve.Snapshot, alloc Allocation,
	key string, res PoolResult, logger *zap.Logger) (*Event, error) {
	// Пул уже создан: отмена вызывающего не должна потерять запись события
	ctx = context.WithoutCancel(ctx)

	unlock := o.lock(mint)
	defer unlock()

	if existing, err := o.deps.Store.GetGraduation(ctx, mint); err == nil {
		logger.Warn("Graduation event already recorded by another writer")
		o.ensureClosed(ctx, mint)
		return existing, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load graduation event: %w", err)
	}

	engine, err := o.deps.Curves.Engine(mint)
	if err != nil {
		return nil, err
	}

	now := o.now().UTC()
	ev := &Event{
		Mint:           mint,
		PreState:       snap.State,
		PostState:      engine.Snapshot().State,
		Allocation:     alloc,
		PoolID:         res.PoolID,
		Signature:      res.Signature,
		IdempotencyKey: key,
		CreatedAt:      now,
	}
	if o.cfg.LiquidityLockDays > 0 {
		ev.LiquidityLockedUntil = now.AddDate(0, 0, o.cfg.LiquidityLockDays)
	}
	if ev.PostState.Version != ev.PreState.Version || ev.PostState.Graduated {
		o.deps.Metrics.RecordGraduation("error")
		logger.Error("Curve moved while the pool was being created",
			zap.Uint64("pre_version", ev.PreState.Version),
			zap.Uint64("post_version", ev.PostState.Version),
			zap.String("pool", res.PoolID.String()))
		return nil, fmt.Errorf("%w: %s version %d, pool allocated from version %d",
			ErrInconsistentState, mint, ev.PostState.Version, ev.PreState.Version)
	}

	if err := o.deps.Store.InsertGraduation(ctx, ev); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			winner, getErr := o.deps.Store.GetGraduation(ctx, mint)
			if getErr != nil {
				return nil, fmt.Errorf("load winning graduation event: %w", getErr)
			}
			o.ensureClosed(ctx, mint)
			return winner, nil
		}
		o.deps.Metrics.RecordGraduation("error")
		return nil, fmt.Errorf("insert graduation event: %w", err)
	}

	engine.MarkGraduated()
	if err := o.deps.Curves.Save(ctx, mint); err != nil {
		// Событие - источник истины; Reconcile закроет кривую при следующем запуске
		logger.Error("Failed to persist graduated curve state", zap.Error(err))
	}
	o.deps.Status.Invalidate(ctx, mint)
	o.deps.Metrics.RecordGraduation("graduated")

	o.publish(events.TokenGraduatedEvent{
		BaseEvent:          events.NewBase(events.TokenGraduated, now),
		Mint:               mint,
		PoolID:             ev.PoolID,
		Signature:          ev.Signature,
		SolForLiquidity:    alloc.SolForLiquidity,
		TokensForLiquidity: alloc.TokensForLiquidity,
		RemainingSol:       alloc.RemainingSol,
	}, logger)
	if o.deps.Notifier != nil {
		if err := o.deps.Notifier.NotifyGraduated(ctx, ev); err != nil {
			logger.Error("Failed to notify graduation", zap.Error(err))
		}
	}

	logger.Info("Token graduated",
		zap.String("pool", ev.PoolID.String()),
		zap.String("signature", ev.Signature.String()),
		zap.Uint64("sol_for_liquidity", alloc.SolForLiquidity),
		zap.Uint64("tokens_for_liquidity", alloc.TokensForLiquidity),
		zap.Uint64("remaining_sol", alloc.RemainingSol))

	out := *ev
	return &out, nil
}

// Reconcile closes curves whose graduation event exists but whose state was not persisted as graduated.
func (o *Orchestrator) Reconcile(ctx context.Context) (int, error) {
	evs, err := o.deps.Store.ListGraduations(ctx)
	if err != nil {
		return 0, fmt.Errorf("list graduation events: %w", err)
	}
	closed := 0
	for _, ev := range evs {
		if o.ensureClosed(ctx, ev.Mint) {
			closed++
		}
	}
	if closed > 0 {
		o.logger.Info("Reconciled graduated curves", zap.Int("closed", closed))
	}
	return closed, nil
}

// ensureClosed marks the engine graduated if an event exists but the curve is still open.
func (o *Orchestrator) ensureClosed(ctx context.Context, mint solana.PublicKey) bool {
	engine, err := o.deps.Curves.Engine(mint)
	if err != nil {
		o.logger.Warn("Graduated mint is not registered", zap.String("mint", mint.String()), zap.Error(err))
		return false
	}
	if engine.Snapshot().State.Graduated {
		return false
	}
	engine.MarkGraduated()
	if err := o.deps.Curves.Save(ctx, mint); err != nil {
		o.logger.Error("Failed to persist graduated curve state", zap.String("mint", mint.String()), zap.Error(err))
	}
	return true
}

func (o *Orchestrator) lock(mint solana.PublicKey) func() {
	o.locksMu.Lock()
	m, ok := o.locks[mint]
	if !ok {
		m = &sync.Mutex{}
		o.locks[mint] = m
	}
	o.locksMu.Unlock()
	m.Lock()
	return m.Unlock
}

func (o *Orchestrator) publish(e events.Event, logger *zap.Logger) {
	if o.deps.Publisher == nil {
		return
	}
	if err := o.deps.Publisher.Publish(e); err != nil {
		logger.Warn("Failed to publish event", zap.String("event_type", string(e.Type())), zap.Error(err))
	}
}

// engineGate suspends the engine directly, without waiting for in-flight orders.
type engineGate struct {
	curves Curves
}

func (g engineGate) Suspend(_ context.Context, mint solana.PublicKey) (curve.Snapshot, error) {
	engine, err := g.curves.Engine(mint)
	if err != nil {
		return curve.Snapshot{}, err
	}
	return engine.BeginGraduation()
}
