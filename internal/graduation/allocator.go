// internal/graduation/allocator.go
package graduation

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/launchpad/internal/curve"
)

// AllocationConfig задает доли резервов, уходящих в пул DEX.
type AllocationConfig struct {
	PoolPercentage      decimal.Decimal // доля токенов кривой для пула
	LiquidityPercentage decimal.Decimal // доля реального SOL для пула
	PlatformFeePercent  decimal.Decimal
}

// DefaultAllocationConfig returns the 80% SOL / 20% token split.
func DefaultAllocationConfig() AllocationConfig {
	return AllocationConfig{
		PoolPercentage:      decimal.NewFromInt(20),
		LiquidityPercentage: decimal.NewFromInt(80),
		PlatformFeePercent:  decimal.RequireFromString("0.99"),
	}
}

// ValidateAllocation проверяет, что каждая доля в [0,100], их сумма не больше 100,
// а комиссия платформы не больше 10%.
func ValidateAllocation(cfg AllocationConfig) error {
	for name, p := range map[string]decimal.Decimal{
		"pool percentage":      cfg.PoolPercentage,
		"liquidity percentage": cfg.LiquidityPercentage,
		"platform fee percent": cfg.PlatformFeePercent,
	} {
		if p.IsNegative() || p.GreaterThan(hundred) {
			return fmt.Errorf("%w: %s %s out of [0,100]", ErrInvalidConfig, name, p)
		}
	}
	if cfg.PoolPercentage.Add(cfg.LiquidityPercentage).GreaterThan(hundred) {
		return fmt.Errorf("%w: pool %s%% + liquidity %s%% exceeds 100%%",
			ErrInvalidConfig, cfg.PoolPercentage, cfg.LiquidityPercentage)
	}
	if err := curve.ValidateFeePercent(cfg.PlatformFeePercent); err != nil {
		return err
	}
	return nil
}

// Allocator splits final curve reserves between the DEX pool and the creator.
type Allocator struct {
	cfg              AllocationConfig
	minimumLiquidity uint64
	feePercent       decimal.Decimal
}

// NewAllocator validates cfg once; Allocate never fails on configuration afterwards.
func NewAllocator(cfg AllocationConfig, minimumLiquidity uint64, graduationFeePercent decimal.Decimal) (*Allocator, error) {
	if err := ValidateAllocation(cfg); err != nil {
		return nil, err
	}
	if graduationFeePercent.IsNegative() || graduationFeePercent.GreaterThan(hundred) {
		return nil, fmt.Errorf("%w: graduation fee %s%% out of [0,100]", ErrInvalidConfig, graduationFeePercent)
	}
	return &Allocator{
		cfg:              cfg,
		minimumLiquidity: minimumLiquidity,
		feePercent:       graduationFeePercent,
	}, nil
}

// Allocate computes the split from a snapshot:
//
//	SolForLiquidity    = floor(realSol * liquidity%)
//	TokensForLiquidity = floor((vToken - rToken) * pool%)
//	GraduationFee      = floor((realSol - SolForLiquidity) * fee%)
//	RemainingSol       = realSol - SolForLiquidity - GraduationFee
func (a *Allocator) Allocate(snap curve.Snapshot) (Allocation, error) {
	realSol := snap.State.RealSolReserves
	curToken := snap.TokenReserves()

	solForLiquidity := percentOf(realSol, a.cfg.LiquidityPercentage)
	if solForLiquidity < a.minimumLiquidity {
		return Allocation{}, fmt.Errorf("%w: %d lamports for the pool, minimum %d",
			ErrInsufficientLiquidity, solForLiquidity, a.minimumLiquidity)
	}
	tokensForLiquidity := percentOf(curToken, a.cfg.PoolPercentage)

	creatorSol := realSol - solForLiquidity
	fee := percentOf(creatorSol, a.feePercent)

	return Allocation{
		SolForLiquidity:    solForLiquidity,
		TokensForLiquidity: tokensForLiquidity,
		RemainingSol:       creatorSol - fee,
		RemainingTokens:    curToken - tokensForLiquidity,
		GraduationFee:      fee,
	}, nil
}

// percentOf returns floor(amount * pct / 100); pct is already validated to [0,100].
func percentOf(amount uint64, pct decimal.Decimal) uint64 {
	v := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0).Mul(pct).Div(hundred).Floor()
	return v.BigInt().Uint64()
}
