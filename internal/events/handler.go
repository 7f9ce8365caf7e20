// internal/events/handler.go
package events

import (
	"context"
	"sync"
)

// Handler processes one event. Handlers run on the bus worker that owns the
// event's mint, so a slow handler delays later events of the same token.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls f(ctx, event).
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription cancels a handler registration. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

type registration struct {
	id      uint64
	handler Handler
}
