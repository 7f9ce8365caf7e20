package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	server "github.com/nats-io/nats-server/v2/server"
	nats "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.HTTP.ShutdownTimeout = 5 * time.Second
	return cfg
}

func createToken(t *testing.T, h http.Handler) string {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"creator": solana.NewWallet().PublicKey().String(),
		"name":    "Runner",
		"symbol":  "RUN",
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tokens/", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Mint string `json:"mint"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Mint
}

func TestRunner_InitializeInMemory(t *testing.T) {
	r := NewRunner(testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, r.Initialize(context.Background()))
	t.Cleanup(func() { _ = r.Shutdown(context.Background()) })

	h := r.Handler()
	mint := createToken(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tokens/"+mint+"/graduation", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"phase":"accumulating"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRunner_LogLevelEndpoint(t *testing.T) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	r := NewRunner(testConfig(t), zaptest.NewLogger(t), WithLogLevel(level))
	require.NoError(t, r.Initialize(context.Background()))
	t.Cleanup(func() { _ = r.Shutdown(context.Background()) })

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/debug/loglevel", bytes.NewBufferString(`{"level":"debug"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, zapcore.DebugLevel, level.Level())

	plain := NewRunner(testConfig(t), nil)
	require.NoError(t, plain.Initialize(context.Background()))
	t.Cleanup(func() { _ = plain.Shutdown(context.Background()) })

	rec = httptest.NewRecorder()
	plain.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/loglevel", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	r := NewRunner(testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, r.Initialize(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunner_RunRequiresInitialize(t *testing.T) {
	r := NewRunner(testConfig(t), zaptest.NewLogger(t))
	assert.Error(t, r.Run(context.Background()))
}

func TestRunner_InvalidPayerKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paper.PayerKey = "not-a-key"
	r := NewRunner(cfg, zaptest.NewLogger(t))
	assert.Error(t, r.Initialize(context.Background()))
}

func TestRunner_PublishesToNATS(t *testing.T) {
	opts := &server.Options{JetStream: true, Host: "127.0.0.1", Port: -1, StoreDir: t.TempDir()}
	srv, err := server.NewServer(opts)
	require.NoError(t, err)
	go srv.Start()
	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Skip("nats-server not ready in sandbox")
	}
	t.Cleanup(srv.Shutdown)

	cfg := testConfig(t)
	cfg.NATS.URL = srv.ClientURL()
	r := NewRunner(cfg, zaptest.NewLogger(t))
	require.NoError(t, r.Initialize(context.Background()))
	t.Cleanup(func() { _ = r.Shutdown(context.Background()) })

	createToken(t, r.Handler())

	nc, err := nats.Connect(cfg.NATS.URL)
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	js, err := nc.JetStream()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		info, err := js.StreamInfo(cfg.NATS.Stream)
		return err == nil && info.State.Msgs == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestShutdownHandler_ReverseOrder(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t))
	var order []string
	boom := errors.New("boom")

	sh.AddFunc("first", func() error { order = append(order, "first"); return nil })
	sh.AddFunc("second", func() error { order = append(order, "second"); return boom })
	sh.AddFunc("third", func() error { order = append(order, "third"); return nil })

	err := sh.Shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"third", "second", "first"}, order)

	assert.NoError(t, sh.Shutdown(context.Background()), "services are closed once")
}

func TestShutdownHandler_Timeout(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t))
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	sh.AddFunc("stuck", func() error { <-release; return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, sh.Shutdown(ctx))
}
