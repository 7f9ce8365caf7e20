package graduation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/launchpad/internal/curve"
)

func TestValidateAllocation(t *testing.T) {
	d := decimal.RequireFromString
	tests := []struct {
		name    string
		cfg     AllocationConfig
		wantErr bool
	}{
		{"defaults", DefaultAllocationConfig(), false},
		{"exactly 100", AllocationConfig{PoolPercentage: d("20"), LiquidityPercentage: d("80"), PlatformFeePercent: d("10")}, false},
		{"sum over 100", AllocationConfig{PoolPercentage: d("20.01"), LiquidityPercentage: d("80")}, true},
		{"sum over 100 both large", AllocationConfig{PoolPercentage: d("60"), LiquidityPercentage: d("60")}, true},
		{"negative pool", AllocationConfig{PoolPercentage: d("-1"), LiquidityPercentage: d("80")}, true},
		{"liquidity above 100", AllocationConfig{PoolPercentage: d("0"), LiquidityPercentage: d("100.5")}, true},
		{"platform fee above 10", AllocationConfig{PoolPercentage: d("20"), LiquidityPercentage: d("80"), PlatformFeePercent: d("10.5")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAllocation(tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAllocator_Allocate(t *testing.T) {
	a, err := NewAllocator(DefaultAllocationConfig(), 8*curve.LamportsPerSol, decimal.Zero)
	require.NoError(t, err)

	snap := curve.Snapshot{Config: curve.DefaultConfig(), State: curve.State{RealSolReserves: 100 * curve.LamportsPerSol}}
	alloc, err := a.Allocate(snap)
	require.NoError(t, err)

	assert.Equal(t, uint64(80*curve.LamportsPerSol), alloc.SolForLiquidity)
	assert.Equal(t, uint64(20*curve.LamportsPerSol), alloc.RemainingSol)
	assert.Equal(t, uint64(214_600_000*curve.TokenUnit), alloc.TokensForLiquidity)
	assert.Equal(t, uint64(858_400_000*curve.TokenUnit), alloc.RemainingTokens)
	assert.Zero(t, alloc.GraduationFee)
}

func TestAllocator_GraduationFeeAndFlooring(t *testing.T) {
	a, err := NewAllocator(DefaultAllocationConfig(), 0, decimal.NewFromInt(5))
	require.NoError(t, err)

	snap := curve.Snapshot{
		Config: curve.DefaultConfig(),
		State:  curve.State{RealSolReserves: 1_000_000_007, RealTokenReserves: 3},
	}
	alloc, err := a.Allocate(snap)
	require.NoError(t, err)

	// floor(1_000_000_007 * 0.8) = 800_000_005
	assert.Equal(t, uint64(800_000_005), alloc.SolForLiquidity)
	// floor(200_000_002 * 0.05) = 10_000_000
	assert.Equal(t, uint64(10_000_000), alloc.GraduationFee)
	assert.Equal(t, uint64(190_000_002), alloc.RemainingSol)
	assert.Equal(t, snap.State.RealSolReserves, alloc.SolForLiquidity+alloc.GraduationFee+alloc.RemainingSol)
	assert.Equal(t, snap.TokenReserves(), alloc.TokensForLiquidity+alloc.RemainingTokens)
}

func TestAllocator_BelowMinimum(t *testing.T) {
	a, err := NewAllocator(DefaultAllocationConfig(), 8*curve.LamportsPerSol, decimal.Zero)
	require.NoError(t, err)

	// 80% of 9 SOL = 7.2 SOL
	_, err = a.Allocate(curve.Snapshot{Config: curve.DefaultConfig(), State: curve.State{RealSolReserves: 9 * curve.LamportsPerSol}})
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestNewAllocator_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultAllocationConfig()
	cfg.PoolPercentage = decimal.NewFromInt(21)
	_, err := NewAllocator(cfg, 0, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewAllocator(DefaultAllocationConfig(), 0, decimal.NewFromInt(-5))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
