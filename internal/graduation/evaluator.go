// internal/graduation/evaluator.go
package graduation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/launchpad/internal/curve"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// ratioPrecision - знаков после запятой при делении прогресса
const ratioPrecision int32 = 18

// Evaluate вычисляет статус выпуска токена. Чистая функция: результат зависит
// только от снимка, конфигурации, общего предложения и рыночных данных.
// totalSupply в базовых единицах; 0 означает snap.Config.TotalSupply.
func Evaluate(snap curve.Snapshot, cfg Config, totalSupply uint64, md MarketData) Status {
	if totalSupply == 0 {
		totalSupply = snap.Config.TotalSupply
	}

	st := Status{
		Mint:         snap.Mint,
		Liquidity:    snap.State.RealSolReserves,
		MarketCap:    marketCap(snap, cfg, totalSupply, md),
		StateVersion: snap.State.Version,
		EvaluatedAt:  md.AsOf,
	}

	st.MarketCapMet = st.MarketCap.IsPositive() && st.MarketCap.GreaterThanOrEqual(cfg.MinimumMarketCap)
	st.LiquidityMet = st.Liquidity >= cfg.MinimumLiquidity
	st.HoldersMet = cfg.MinimumHolders <= 0 || md.Holders >= cfg.MinimumHolders
	st.VolumeMet = cfg.MinimumVolume24h == 0 || md.Volume24h >= cfg.MinimumVolume24h
	st.AgeMet = cfg.MinimumAge <= 0 || md.Age >= cfg.MinimumAge

	if !st.LiquidityMet {
		st.MissingLiquidity = cfg.MinimumLiquidity - st.Liquidity
	}
	if !st.MarketCapMet {
		st.MissingMarketCap = cfg.MinimumMarketCap.Sub(st.MarketCap)
		if st.MissingMarketCap.IsNegative() {
			st.MissingMarketCap = decimal.Zero
		}
	}

	mcProgress := clampedRatio(st.MarketCap, cfg.MinimumMarketCap)
	liqProgress := clampedRatio(curve.LamportsToSol(st.Liquidity), curve.LamportsToSol(cfg.MinimumLiquidity))
	st.ProgressPercent = decimal.Max(mcProgress, liqProgress).Mul(hundred).Round(4)

	allMet := st.MarketCapMet && st.LiquidityMet && st.HoldersMet && st.VolumeMet && st.AgeMet
	switch {
	case snap.State.Graduated:
		st.Phase = PhaseGraduated
		st.ProgressPercent = hundred
	case allMet:
		st.Phase = PhaseEligible
		st.IsEligible = true
	default:
		st.Phase = PhaseAccumulating
	}

	return st
}

// marketCap returns price * supply in the configured denomination.
// An exhausted curve or a missing SOL/USD price yields zero, which fails the criterion.
func marketCap(snap curve.Snapshot, cfg Config, totalSupply uint64, md MarketData) decimal.Decimal {
	price, err := snap.Price()
	if err != nil {
		return decimal.Zero
	}
	mc := price.Mul(curve.UnitsToTokens(totalSupply))
	if cfg.MarketCapDenomination == DenominationUSD {
		if !md.SolUsdPrice.IsPositive() {
			return decimal.Zero
		}
		mc = mc.Mul(md.SolUsdPrice)
	}
	return mc
}

// clampedRatio returns value/threshold clamped to [0,1]; a zero threshold counts as reached.
func clampedRatio(value, threshold decimal.Decimal) decimal.Decimal {
	if !threshold.IsPositive() {
		return one
	}
	r := value.DivRound(threshold, ratioPrecision)
	if r.IsNegative() {
		return decimal.Zero
	}
	if r.GreaterThan(one) {
		return one
	}
	return r
}

// Validate checks threshold configuration.
func (c Config) Validate() error {
	if c.MinimumMarketCap.IsNegative() {
		return fmt.Errorf("%w: minimum market cap must not be negative", ErrInvalidConfig)
	}
	if c.MinimumHolders < 0 {
		return fmt.Errorf("%w: minimum holders must not be negative", ErrInvalidConfig)
	}
	if c.MinimumAge < 0 {
		return fmt.Errorf("%w: minimum age must not be negative", ErrInvalidConfig)
	}
	if c.LiquidityLockDays < 0 {
		return fmt.Errorf("%w: liquidity lock days must not be negative", ErrInvalidConfig)
	}
	if c.GraduationFeePercent.IsNegative() || c.GraduationFeePercent.GreaterThan(hundred) {
		return fmt.Errorf("%w: graduation fee %s%% out of [0,100]", ErrInvalidConfig, c.GraduationFeePercent)
	}
	switch c.MarketCapDenomination {
	case DenominationSOL, DenominationUSD:
	default:
		return fmt.Errorf("%w: unknown market cap denomination %q", ErrInvalidConfig, c.MarketCapDenomination)
	}
	return nil
}
