// =============================
// File: internal/graduation/types.go
// =============================
package graduation

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/launchpad/internal/curve"
)

// Phase is the lifecycle stage of a token curve.
type Phase string

const (
	PhaseAccumulating Phase = "accumulating"
	PhaseEligible     Phase = "eligible"
	PhaseGraduated    Phase = "graduated"
)

// Denomination задает валюту, в которой выражен порог капитализации.
type Denomination string

const (
	DenominationSOL Denomination = "SOL"
	DenominationUSD Denomination = "USD"
)

// Config хранит пороги выпуска токена на DEX.
// Нулевые значения необязательных критериев отключают их.
type Config struct {
	MinimumMarketCap      decimal.Decimal
	MinimumLiquidity      uint64 // lamports реальных резервов
	MinimumHolders        int
	MinimumVolume24h      uint64 // lamports
	MinimumAge            time.Duration
	GraduationFeePercent  decimal.Decimal
	LiquidityLockDays     int
	MarketCapDenomination Denomination
}

// DefaultConfig returns 69,000 SOL market cap and 8 SOL liquidity.
func DefaultConfig() Config {
	return Config{
		MinimumMarketCap:      decimal.NewFromInt(69_000),
		MinimumLiquidity:      8 * curve.LamportsPerSol,
		GraduationFeePercent:  decimal.Zero,
		MarketCapDenomination: DenominationSOL,
	}
}

// MarketData is the read-only market input of the evaluator.
type MarketData struct {
	Volume24h   uint64 // lamports
	Holders     int
	Age         time.Duration
	SolUsdPrice decimal.Decimal
	AsOf        time.Time
}

// Status is the derived, recomputable graduation status of one token.
type Status struct {
	Mint  solana.PublicKey `json:"mint"`
	Phase Phase            `json:"phase"`

	MarketCap decimal.Decimal `json:"market_cap"`
	Liquidity uint64          `json:"liquidity"`

	MarketCapMet bool `json:"market_cap_met"`
	LiquidityMet bool `json:"liquidity_met"`
	HoldersMet   bool `json:"holders_met"`
	VolumeMet    bool `json:"volume_met"`
	AgeMet       bool `json:"age_met"`

	ProgressPercent decimal.Decimal `json:"progress_percent"`
	IsEligible      bool            `json:"is_eligible"`

	MissingLiquidity uint64          `json:"missing_liquidity"`
	MissingMarketCap decimal.Decimal `json:"missing_market_cap"`

	StateVersion uint64    `json:"state_version"`
	EvaluatedAt  time.Time `json:"evaluated_at"`
}

// Allocation is the split of final reserves computed once at graduation.
type Allocation struct {
	SolForLiquidity    uint64 `json:"sol_for_liquidity"`
	TokensForLiquidity uint64 `json:"tokens_for_liquidity"`
	RemainingSol       uint64 `json:"remaining_sol"`
	RemainingTokens    uint64 `json:"remaining_tokens"`
	GraduationFee      uint64 `json:"graduation_fee"`
}

// Event is the terminal, insert-only record of a graduation.
type Event struct {
	Mint                 solana.PublicKey
	PreState             curve.State
	PostState            curve.State
	Allocation           Allocation
	PoolID               solana.PublicKey
	Signature            solana.Signature
	IdempotencyKey       string
	LiquidityLockedUntil time.Time
	CreatedAt            time.Time
}

// PoolRequest is what the DEX collaborator receives to create a pool.
type PoolRequest struct {
	Mint           solana.PublicKey
	TokenAmount    uint64
	SolAmount      uint64
	IdempotencyKey string
}

// PoolResult identifies the created pool and its transaction.
type PoolResult struct {
	PoolID    solana.PublicKey
	Signature solana.Signature
}

// PoolCreator creates the external DEX pool. Repeated calls with the same
// IdempotencyKey must not create a second pool.
type PoolCreator interface {
	CreatePool(ctx context.Context, req PoolRequest) (PoolResult, error)
}

// TradingGate закрывает кривую для торговли перед созданием пула и
// возвращает замороженный снимок. Возобновление - curve.Engine.AbortGraduation.
type TradingGate interface {
	Suspend(ctx context.Context, mint solana.PublicKey) (curve.Snapshot, error)
}

// MarketDataSource supplies volume, holders and age for a mint.
type MarketDataSource interface {
	MarketData(ctx context.Context, mint solana.PublicKey) (MarketData, error)
}

// PriceOracle returns the SOL price in USD.
type PriceOracle interface {
	SolUsdPrice(ctx context.Context) (decimal.Decimal, error)
}

// EventStore persists graduation events. InsertGraduation returns
// storage.ErrDuplicateKey when an event for the mint already exists.
type EventStore interface {
	GetGraduation(ctx context.Context, mint solana.PublicKey) (*Event, error)
	InsertGraduation(ctx context.Context, ev *Event) error
	ListGraduations(ctx context.Context) ([]*Event, error)
}

// Curves gives access to the live engines of registered tokens.
type Curves interface {
	Engine(mint solana.PublicKey) (*curve.Engine, error)
	Mints() []solana.PublicKey
	Save(ctx context.Context, mint solana.PublicKey) error
}

// Notifier forwards graduation events to external watchers.
type Notifier interface {
	NotifyGraduated(ctx context.Context, ev *Event) error
}
