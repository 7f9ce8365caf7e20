package graduation

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
)

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(5 * time.Minute)
	c.now = func() time.Time { return now }

	mint := solana.NewWallet().PublicKey()
	require.NoError(t, c.Set(ctx, Status{Mint: mint, Phase: PhaseEligible}))

	st, err := c.Get(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, PhaseEligible, st.Phase)

	now = now.Add(5 * time.Minute)
	_, err = c.Get(ctx, mint)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	mint := solana.NewWallet().PublicKey()

	require.NoError(t, c.Set(ctx, Status{Mint: mint}))
	require.NoError(t, c.Invalidate(ctx, mint))

	_, err := c.Get(ctx, mint)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestStatusService_InvalidatesOnTrade(t *testing.T) {
	ctx := context.Background()
	curves := newFakeCurves()
	engine, err := curve.NewEngine(solana.NewWallet().PublicKey(), curve.DefaultConfig(), nil)
	require.NoError(t, err)
	curves.add(engine)

	svc, err := NewStatusService(curves, DefaultConfig(), zaptest.NewLogger(t), WithCache(NewMemoryCache(time.Hour)))
	require.NoError(t, err)

	before, err := svc.Status(ctx, engine.Mint())
	require.NoError(t, err)
	assert.Zero(t, before.Liquidity)

	q, err := engine.QuoteBuy(9 * curve.LamportsPerSol)
	require.NoError(t, err)
	require.NoError(t, engine.Apply(q))

	cached, err := svc.Status(ctx, engine.Mint())
	require.NoError(t, err)
	assert.Zero(t, cached.Liquidity, "cache is advisory until invalidated")

	require.NoError(t, svc.HandleEvent(ctx, events.TradeAppliedEvent{
		BaseEvent: events.NewBase(events.TradeApplied, time.Now()),
		Mint:      engine.Mint(),
	}))

	after, err := svc.Status(ctx, engine.Mint())
	require.NoError(t, err)
	assert.Equal(t, q.SolDelta, after.Liquidity)
	assert.True(t, after.LiquidityMet)
	assert.Equal(t, uint64(1), after.StateVersion)
}
