// internal/graduation/sweeper.go
package graduation

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sweeper periodically evaluates registered tokens and graduates eligible ones.
type Sweeper struct {
	orch        *Orchestrator
	status      *StatusService
	curves      Curves
	interval    time.Duration
	concurrency int
	logger      *zap.Logger
}

// NewSweeper creates a sweeper; concurrency bounds parallel evaluations.
func NewSweeper(orch *Orchestrator, status *StatusService, curves Curves, interval time.Duration, concurrency int, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		orch:        orch,
		status:      status,
		curves:      curves,
		interval:    interval,
		concurrency: concurrency,
		logger:      logger.Named("sweeper"),
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Graduation sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Graduation sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce evaluates all open curves and returns how many graduated.
// Ошибка одного токена не прерывает обход остальных.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	var graduated atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, mint := range s.curves.Mints() {
		g.Go(func() error {
			logger := s.logger.With(zap.String("mint", mint.String()))

			st, err := s.status.Status(gctx, mint)
			if err != nil {
				logger.Warn("Status evaluation failed", zap.Error(err))
				return nil
			}
			if !st.IsEligible {
				return nil
			}

			if _, err := s.orch.Graduate(gctx, mint); err != nil {
				logger.Warn("Graduation attempt failed",
					zap.Bool("retryable", IsRetryable(err)),
					zap.Error(err))
				return nil
			}
			graduated.Add(1)
			return nil
		})
	}

	err := g.Wait()
	return int(graduated.Load()), err
}
