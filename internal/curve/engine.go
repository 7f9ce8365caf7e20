// =============================
// File: internal/curve/engine.go
// =============================
package curve

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine владеет состоянием кривой одного токена.
// Котировки читают снимок и не изменяют состояние; Apply - единственный мутатор.
type Engine struct {
	mu     sync.RWMutex
	mint   solana.PublicKey
	config Config
	fees   FeeModel
	state  State
	// graduating не сохраняется: после рестарта Reconcile либо закрывает кривую, либо торговля продолжается
	graduating bool
	logger     *zap.Logger
}

// NewEngine creates an engine with empty real reserves.
func NewEngine(mint solana.PublicKey, cfg Config, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fees, err := NewFeeModel(cfg.PlatformFeePercent)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		mint:   mint,
		config: cfg,
		fees:   fees,
		logger: logger.Named("curve").With(zap.String("mint", mint.String())),
	}, nil
}

// Mint returns the token mint this engine prices.
func (e *Engine) Mint() solana.PublicKey {
	return e.mint
}

// Snapshot returns a read-only copy of config and state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{Mint: e.mint, Config: e.config, State: e.state, Graduating: e.graduating}
}

// CurrentPrice returns (virtualSol + realSol) / (virtualToken - realToken) in SOL per token.
func (e *Engine) CurrentPrice() (decimal.Decimal, error) {
	return e.Snapshot().Price()
}

// QuoteBuy quotes spending solIn lamports. The fee is taken from the input before the swap.
func (e *Engine) QuoteBuy(solIn uint64) (*TradeQuote, error) {
	e.mu.RLock()
	snap := e.snapshotLocked()
	fees := e.fees
	e.mu.RUnlock()
	return QuoteBuy(snap, fees, solIn)
}

// QuoteSell quotes selling tokenIn base units. The fee is taken from the SOL output.
func (e *Engine) QuoteSell(tokenIn uint64) (*TradeQuote, error) {
	e.mu.RLock()
	snap := e.snapshotLocked()
	fees := e.fees
	e.mu.RUnlock()
	return QuoteSell(snap, fees, tokenIn)
}

// Apply применяет подтвержденную сделку. Вызывать только после подтверждения расчета во внешней системе.
// Котировка должна быть рассчитана от текущей версии состояния (compare-and-swap).
func (e *Engine) Apply(q *TradeQuote) error {
	if q == nil {
		return fmt.Errorf("%w: nil quote", ErrInvalidAmount)
	}
	if !q.Mint.Equals(e.mint) {
		return fmt.Errorf("%w: quote for %s applied to %s", ErrInvalidAmount, q.Mint, e.mint)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Graduated {
		return ErrCurveGraduated
	}
	if e.graduating {
		return ErrCurveGraduating
	}
	if q.BaseVersion != e.state.Version {
		return fmt.Errorf("%w: quote version %d, state version %d", ErrStaleQuote, q.BaseVersion, e.state.Version)
	}

	next := e.state
	switch q.Side {
	case SideBuy:
		next.RealSolReserves += q.SolDelta
		next.RealTokenReserves += q.TokenDelta
		if next.RealTokenReserves > e.config.VirtualTokenReserves {
			next.RealTokenReserves = e.config.VirtualTokenReserves
		}
	case SideSell:
		next.RealSolReserves = subClamp(next.RealSolReserves, q.SolDelta)
		next.RealTokenReserves = subClamp(next.RealTokenReserves, q.TokenDelta)
	default:
		return fmt.Errorf("%w: unknown side %q", ErrInvalidAmount, q.Side)
	}
	next.Version++
	e.state = next

	e.logger.Debug("Trade applied",
		zap.String("side", string(q.Side)),
		zap.Uint64("input", q.InputAmount),
		zap.Uint64("output", q.OutputAmount),
		zap.Uint64("real_sol_reserves", next.RealSolReserves),
		zap.Uint64("real_token_reserves", next.RealTokenReserves),
		zap.Uint64("version", next.Version))

	return nil
}

// BeginGraduation приостанавливает котировки и Apply и возвращает замороженный снимок.
// Повторный вызов во время градуации возвращает тот же снимок.
func (e *Engine) BeginGraduation() (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Graduated {
		return Snapshot{}, ErrCurveGraduated
	}
	if !e.graduating {
		e.graduating = true
		e.logger.Info("Trading suspended for graduation", zap.Uint64("version", e.state.Version))
	}
	return e.snapshotLocked(), nil
}

// AbortGraduation resumes trading after a failed graduation attempt.
func (e *Engine) AbortGraduation() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.graduating || e.state.Graduated {
		return
	}
	e.graduating = false
	e.logger.Info("Trading resumed", zap.Uint64("version", e.state.Version))
}

// MarkGraduated closes the curve for trading. Reserves are left untouched.
func (e *Engine) MarkGraduated() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Graduated {
		return
	}
	e.graduating = false
	e.state.Graduated = true
	e.state.Version++
	e.logger.Info("Curve closed after graduation", zap.Uint64("version", e.state.Version))
}

// Restore replaces the state with one loaded from durable storage.
func (e *Engine) Restore(state State) error {
	if state.RealTokenReserves > e.config.VirtualTokenReserves {
		return fmt.Errorf("%w: real token reserves %d exceed virtual %d",
			ErrInvalidConfig, state.RealTokenReserves, e.config.VirtualTokenReserves)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
	return nil
}

// UpdateConfig installs a new config (and therefore a new k). Only allowed before the first trade.
func (e *Engine) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	fees, err := NewFeeModel(cfg.PlatformFeePercent)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.RealSolReserves != 0 || e.state.RealTokenReserves != 0 {
		return fmt.Errorf("%w: config is immutable once trading started", ErrInvalidConfig)
	}
	e.config = cfg
	e.fees = fees
	e.state.Version++
	return nil
}

func subClamp(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
