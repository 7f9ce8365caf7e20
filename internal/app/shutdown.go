// internal/app/shutdown.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// CloseFunc adapts a function to io.Closer.
type CloseFunc func() error

func (f CloseFunc) Close() error { return f() }

type closer struct {
	name string
	io.Closer
}

// ShutdownHandler - стек ресурсов: закрываются в обратном порядке регистрации.
// HTTP регистрируется последним и останавливается первым, хранилище - последним.
type ShutdownHandler struct {
	logger *zap.Logger

	mu    sync.Mutex
	stack []closer
}

func NewShutdownHandler(logger *zap.Logger) *ShutdownHandler {
	return &ShutdownHandler{logger: logger}
}

// Add pushes a resource onto the shutdown stack.
func (sh *ShutdownHandler) Add(name string, c io.Closer) {
	sh.mu.Lock()
	sh.stack = append(sh.stack, closer{name: name, Closer: c})
	sh.mu.Unlock()
	sh.logger.Debug("Resource registered for shutdown", zap.String("resource", name))
}

func (sh *ShutdownHandler) AddFunc(name string, fn func() error) {
	sh.Add(name, CloseFunc(fn))
}

// Shutdown pops and closes every resource. A resource that outlives ctx aborts
// the remaining ones; the stack is emptied either way.
func (sh *ShutdownHandler) Shutdown(ctx context.Context) error {
	sh.mu.Lock()
	stack := sh.stack
	sh.stack = nil
	sh.mu.Unlock()

	if len(stack) == 0 {
		return nil
	}
	sh.logger.Info("Closing resources", zap.Int("count", len(stack)))

	var errs []error
	for i := len(stack) - 1; i >= 0; i-- {
		err := sh.close(ctx, stack[i])
		if err == nil {
			continue
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}

	if err := errors.Join(errs...); err != nil {
		sh.logger.Error("Shutdown finished with errors", zap.Int("failed", len(errs)), zap.Error(err))
		return err
	}
	sh.logger.Info("All resources closed")
	return nil
}

func (sh *ShutdownHandler) close(ctx context.Context, c closer) error {
	done := make(chan error, 1)
	go func() { done <- c.Close() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		sh.logger.Debug("Resource closed", zap.String("resource", c.name))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", c.name, ctx.Err())
	}
}
