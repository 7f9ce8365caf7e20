package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	server "github.com/nats-io/nats-server/v2/server"
	nats "github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/graduation"
)

func runJetStream(t *testing.T) string {
	t.Helper()
	opts := &server.Options{JetStream: true, Host: "127.0.0.1", Port: -1, StoreDir: t.TempDir()}
	srv, err := server.NewServer(opts)
	require.NoError(t, err)
	go srv.Start()
	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Skip("nats-server not ready in sandbox")
	}
	t.Cleanup(srv.Shutdown)
	return srv.ClientURL()
}

func newTestPublisher(t *testing.T) (*Publisher, nats.JetStreamContext) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.URL = runJetStream(t)
	cfg.PublishTimeout = 2 * time.Second

	pub, err := NewPublisher(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(pub.Close)

	nc, err := nats.Connect(cfg.URL)
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	js, err := nc.JetStream()
	require.NoError(t, err)
	return pub, js
}

func TestPublisher_GraduationIsDeduplicated(t *testing.T) {
	pub, js := newTestPublisher(t)
	ctx := context.Background()

	mint := solana.NewWallet().PublicKey()
	ev := &graduation.Event{
		Mint:           mint,
		PoolID:         solana.NewWallet().PublicKey(),
		IdempotencyKey: graduation.IdempotencyKey(mint, 42),
		Allocation:     graduation.Allocation{SolForLiquidity: 100, TokensForLiquidity: 200, RemainingSol: 5},
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, pub.NotifyGraduated(ctx, ev))
	require.NoError(t, pub.NotifyGraduated(ctx, ev))

	info, err := js.StreamInfo(pub.cfg.Stream)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.State.Msgs)

	msg, err := js.GetLastMsg(pub.cfg.Stream, "launchpad.token.graduated")
	require.NoError(t, err)
	assert.Equal(t, ev.IdempotencyKey, msg.Header.Get(nats.MsgIdHdr))

	var decoded struct {
		Type string `json:"type"`
		Mint string `json:"mint"`
		Data struct {
			PoolID     string                `json:"pool_id"`
			Allocation graduation.Allocation `json:"allocation"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, "token.graduated", decoded.Type)
	assert.Equal(t, mint.String(), decoded.Mint)
	assert.Equal(t, ev.PoolID.String(), decoded.Data.PoolID)
	assert.Equal(t, uint64(200), decoded.Data.Allocation.TokensForLiquidity)

	assert.Error(t, pub.NotifyGraduated(ctx, nil))
}

func TestPublisher_ForwardsBusEvents(t *testing.T) {
	pub, js := newTestPublisher(t)

	bus := events.NewBus(zaptest.NewLogger(t), 8)
	defer func() { _ = bus.Shutdown(context.Background()) }()
	pub.Subscribe(bus)

	mint := solana.NewWallet().PublicKey()
	require.NoError(t, bus.PublishSync(context.Background(), events.TradeAppliedEvent{
		BaseEvent:   events.NewBase(events.TradeApplied, time.Now()),
		Mint:        mint,
		Trader:      solana.NewWallet().PublicKey(),
		Side:        string(curve.SideBuy),
		SolAmount:   curve.LamportsPerSol,
		TokenAmount: 1_000,
		Version:     3,
		Price:       decimal.RequireFromString("0.00000003"),
	}))
	require.NoError(t, bus.PublishSync(context.Background(), events.TradeFailedEvent{
		BaseEvent: events.NewBase(events.TradeFailed, time.Now()),
		Mint:      mint,
		Side:      string(curve.SideSell),
		Error:     errors.New("settlement rejected"),
	}))

	msg, err := js.GetLastMsg(pub.cfg.Stream, "launchpad.trade.applied")
	require.NoError(t, err)
	assert.Equal(t, "trade:"+mint.String()+":3", msg.Header.Get(nats.MsgIdHdr))

	msg, err = js.GetLastMsg(pub.cfg.Stream, "launchpad.trade.failed")
	require.NoError(t, err)
	assert.Contains(t, string(msg.Data), "settlement rejected")
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate(), "URL is required")

	cfg.URL = "nats://127.0.0.1:4222"
	assert.NoError(t, cfg.Validate())

	cfg.PublishTimeout = 0
	assert.Error(t, cfg.Validate())
}
