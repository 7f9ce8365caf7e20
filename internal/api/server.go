// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/fund"
	"github.com/rovshanmuradov/launchpad/internal/graduation"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/trading"
)

// Tokens is the token registry surface used by the API.
type Tokens interface {
	CreateToken(ctx context.Context, params launchpad.TokenParams) (*curve.Engine, error)
	Info(mint solana.PublicKey) (launchpad.TokenInfo, error)
	Mints() []solana.PublicKey
}

// Trader quotes and executes orders.
type Trader interface {
	Quote(mint solana.PublicKey, side curve.Side, amount uint64) (*curve.TradeQuote, error)
	Execute(ctx context.Context, order trading.Order) (*trading.Fill, error)
}

// StatusReader returns graduation status.
type StatusReader interface {
	Status(ctx context.Context, mint solana.PublicKey) (graduation.Status, error)
}

// Graduator triggers graduation.
type Graduator interface {
	Graduate(ctx context.Context, mint solana.PublicKey) (*graduation.Event, error)
}

// Funds exposes post-graduation creator funds.
type Funds interface {
	Available(ctx context.Context, mint solana.PublicKey) (uint64, error)
	Withdraw(ctx context.Context, mint, caller solana.PublicKey, amount uint64) (*fund.Withdrawal, error)
}

// Deps bundles the collaborators of the HTTP API. Gatherer and LogLevel may be nil.
type Deps struct {
	Tokens    Tokens
	Trader    Trader
	Status    StatusReader
	Graduator Graduator
	Funds     Funds
	Gatherer  prometheus.Gatherer
	LogLevel  http.Handler // GET/PUT {"level":"debug"}
}

// Server bundles dependencies for the HTTP API.
type Server struct {
	router  *chi.Mux
	deps    Deps
	logger  *zap.Logger
	started time.Time
}

// NewServer constructs a Server with registered routes.
func NewServer(deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:  chi.NewRouter(),
		deps:    deps,
		logger:  logger.Named("api"),
		started: time.Now(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.logRequests)

	s.router.Get("/healthz", s.healthzHandler)
	if deps.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	if deps.LogLevel != nil {
		s.router.Method(http.MethodGet, "/debug/loglevel", deps.LogLevel)
		s.router.Method(http.MethodPut, "/debug/loglevel", deps.LogLevel)
	}

	s.router.Route("/v1/tokens", func(r chi.Router) {
		r.Get("/", s.listTokensHandler)
		r.Post("/", s.createTokenHandler)
		r.Route("/{mint}", func(r chi.Router) {
			r.Get("/", s.tokenHandler)
			r.Get("/quote", s.quoteHandler)
			r.Post("/trades", s.tradeHandler)
			r.Get("/graduation", s.graduationStatusHandler)
			r.Post("/graduate", s.graduateHandler)
			r.Get("/funds", s.fundsHandler)
			r.Post("/withdrawals", s.withdrawHandler)
		})
	})

	return s
}

// Handler exposes the underlying router for integration tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Millisecond).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
