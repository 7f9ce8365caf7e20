package graduation

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/launchpad/internal/curve"
)

// richCurve has a market cap far above 69,000 SOL regardless of real reserves.
func richCurve(realSol uint64) curve.Snapshot {
	cfg := curve.DefaultConfig()
	cfg.VirtualSolReserves = 100_000_000 * curve.LamportsPerSol
	return curve.Snapshot{
		Mint:   solana.NewWallet().PublicKey(),
		Config: cfg,
		State:  curve.State{RealSolReserves: realSol},
	}
}

func TestEvaluate_LiquidityBoundary(t *testing.T) {
	cfg := DefaultConfig()

	below := Evaluate(richCurve(7_990_000_000), cfg, 0, MarketData{})
	assert.True(t, below.MarketCapMet)
	assert.False(t, below.LiquidityMet)
	assert.False(t, below.IsEligible)
	assert.Equal(t, PhaseAccumulating, below.Phase)
	assert.Equal(t, uint64(10_000_000), below.MissingLiquidity)

	at := Evaluate(richCurve(8_000_000_000), cfg, 0, MarketData{})
	assert.True(t, at.MarketCapMet)
	assert.True(t, at.LiquidityMet)
	assert.True(t, at.IsEligible)
	assert.Equal(t, PhaseEligible, at.Phase)
	assert.Zero(t, at.MissingLiquidity)
	assert.True(t, at.ProgressPercent.Equal(decimal.NewFromInt(100)))
}

func TestEvaluate_FreshCurve(t *testing.T) {
	snap := curve.Snapshot{Mint: solana.NewWallet().PublicKey(), Config: curve.DefaultConfig()}

	st := Evaluate(snap, DefaultConfig(), 0, MarketData{})

	assert.Equal(t, PhaseAccumulating, st.Phase)
	assert.False(t, st.IsEligible)
	assert.Equal(t, uint64(8*curve.LamportsPerSol), st.MissingLiquidity)
	// 30 SOL / 1.073e9 tokens * 1e9 tokens
	assert.Equal(t, "27.9589934762", st.MarketCap.StringFixed(10))
	assert.True(t, st.MissingMarketCap.Equal(decimal.NewFromInt(69_000).Sub(st.MarketCap)))
	// прогресс: max(27.96/69000, 0/8) * 100
	assert.Equal(t, "0.0405", st.ProgressPercent.StringFixed(4))
}

func TestEvaluate_ProgressAlwaysWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	for _, realSol := range []uint64{0, 1, 4 * curve.LamportsPerSol, 8 * curve.LamportsPerSol, 1_000_000 * curve.LamportsPerSol} {
		for _, snap := range []curve.Snapshot{
			richCurve(realSol),
			{Config: curve.DefaultConfig(), State: curve.State{RealSolReserves: realSol}},
		} {
			st := Evaluate(snap, cfg, 0, MarketData{})
			assert.True(t, st.ProgressPercent.GreaterThanOrEqual(decimal.Zero), "realSol=%d", realSol)
			assert.True(t, st.ProgressPercent.LessThanOrEqual(decimal.NewFromInt(100)), "realSol=%d", realSol)
		}
	}
}

func TestEvaluate_OptionalCriteria(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinimumHolders = 50
	cfg.MinimumVolume24h = 100 * curve.LamportsPerSol
	cfg.MinimumAge = 24 * time.Hour
	snap := richCurve(10 * curve.LamportsPerSol)

	st := Evaluate(snap, cfg, 0, MarketData{Holders: 49, Volume24h: 100 * curve.LamportsPerSol, Age: 25 * time.Hour})
	assert.False(t, st.HoldersMet)
	assert.True(t, st.VolumeMet)
	assert.True(t, st.AgeMet)
	assert.False(t, st.IsEligible)

	st = Evaluate(snap, cfg, 0, MarketData{Holders: 50, Volume24h: 100 * curve.LamportsPerSol, Age: 24 * time.Hour})
	assert.True(t, st.IsEligible)
}

func TestEvaluate_USDDenomination(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MarketCapDenomination = DenominationUSD
	cfg.MinimumMarketCap = decimal.NewFromInt(5_000)
	cfg.MinimumLiquidity = 0
	snap := curve.Snapshot{Config: curve.DefaultConfig()}

	// без курса критерий не выполняется
	st := Evaluate(snap, cfg, 0, MarketData{})
	assert.False(t, st.MarketCapMet)
	assert.True(t, st.MarketCap.IsZero())

	// 27.96 SOL * $200 = $5591.80
	st = Evaluate(snap, cfg, 0, MarketData{SolUsdPrice: decimal.NewFromInt(200)})
	assert.True(t, st.MarketCapMet)
	assert.True(t, st.IsEligible)
	assert.Equal(t, "5591.80", st.MarketCap.StringFixed(2))
}

func TestEvaluate_GraduatedIsTerminal(t *testing.T) {
	snap := richCurve(10 * curve.LamportsPerSol)
	snap.State.Graduated = true

	st := Evaluate(snap, DefaultConfig(), 0, MarketData{})
	assert.Equal(t, PhaseGraduated, st.Phase)
	assert.False(t, st.IsEligible)
}

func TestEvaluate_ExhaustedCurve(t *testing.T) {
	cfg := curve.DefaultConfig()
	snap := curve.Snapshot{Config: cfg, State: curve.State{RealSolReserves: 9 * curve.LamportsPerSol, RealTokenReserves: cfg.VirtualTokenReserves}}

	st := Evaluate(snap, DefaultConfig(), 0, MarketData{})
	assert.True(t, st.MarketCap.IsZero())
	assert.False(t, st.IsEligible)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.MarketCapDenomination = "EUR"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = DefaultConfig()
	bad.GraduationFeePercent = decimal.NewFromInt(101)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = DefaultConfig()
	bad.MinimumMarketCap = decimal.NewFromInt(-1)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}
