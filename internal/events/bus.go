// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	// ErrBusClosed is returned by Publish after Shutdown.
	ErrBusClosed = errors.New("event bus is shutting down")
	// ErrBufferFull is returned when the async buffer cannot accept an event.
	ErrBufferFull = errors.New("event channel full")
)

// DefaultWorkers - число воркеров шины; события одного mint всегда попадают к одному воркеру
const DefaultWorkers = 8

// Publisher is the part of Bus that producers depend on.
type Publisher interface {
	Publish(event Event) error
}

// Bus - внутренняя шина событий launchpad. События раскладываются по воркерам
// по mint: порядок доставки внутри одного токена совпадает с порядком публикации,
// разные токены обрабатываются параллельно.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]registration
	nextID   uint64

	// closeMu защищает отправку в каналы от их закрытия в Shutdown
	closeMu sync.RWMutex
	closed  bool
	queues  []chan Event

	wg         sync.WaitGroup
	dropped    atomic.Uint64
	bufferSize int
	logger     *zap.Logger
}

// NewBus creates a bus with DefaultWorkers workers; bufferSize bounds each worker queue.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}
	b := &Bus{
		handlers:   make(map[EventType][]registration),
		queues:     make([]chan Event, DefaultWorkers),
		bufferSize: bufferSize,
		logger:     logger.Named("event_bus"),
	}
	for i := range b.queues {
		b.queues[i] = make(chan Event, bufferSize)
		b.wg.Add(1)
		go b.worker(b.queues[i])
	}
	return b
}

// Subscribe registers a handler for a specific event type. Handlers of one
// type are called in registration order.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], registration{id: id, handler: handler})
	b.mu.Unlock()

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.Uint64("subscription_id", id))

	return &subscription{cancel: func() { b.unsubscribe(eventType, id) }}
}

// SubscribeFunc is a convenience method for subscribing with a function.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish queues the event on the worker owning its mint. It never blocks:
// a full queue drops the event with ErrBufferFull.
func (b *Bus) Publish(event Event) error {
	if event == nil {
		return fmt.Errorf("nil event")
	}

	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	select {
	case b.queues[b.queueFor(event)] <- event:
		return nil
	default:
		b.dropped.Add(1)
		b.logger.Warn("Event queue full, dropping event",
			zap.String("event_type", string(event.Type())))
		return ErrBufferFull
	}
}

// PublishSync calls every handler of the event type in the caller's goroutine
// and joins their errors.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("nil event")
	}
	return b.dispatch(ctx, event)
}

func (b *Bus) dispatch(ctx context.Context, event Event) error {
	b.mu.RLock()
	regs := b.handlers[event.Type()]
	b.mu.RUnlock()

	var errs []error
	for _, reg := range regs {
		if err := b.call(ctx, reg, event); err != nil {
			b.logger.Error("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.Uint64("subscription_id", reg.id),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("handlers failed for %s: %w", event.Type(), errors.Join(errs...))
	}
	return nil
}

// call runs one handler; a panic is turned into an error so the worker survives.
func (b *Bus) call(ctx context.Context, reg registration, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return reg.handler.Handle(ctx, event)
}

func (b *Bus) worker(queue <-chan Event) {
	defer b.wg.Done()
	// очередь закрывается в Shutdown; оставшиеся события доставляются
	for event := range queue {
		_ = b.dispatch(context.Background(), event)
	}
}

func (b *Bus) queueFor(event Event) int {
	keyed, ok := event.(Keyed)
	if !ok {
		return 0
	}
	mint := keyed.EventMint()
	h := fnv.New32a()
	_, _ = h.Write(mint[:])
	return int(h.Sum32() % uint32(len(b.queues)))
}

func (b *Bus) unsubscribe(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.handlers[eventType]
	kept := make([]registration, 0, len(regs))
	for _, reg := range regs {
		if reg.id != id {
			kept = append(kept, reg)
		}
	}
	if len(kept) == 0 {
		delete(b.handlers, eventType)
	} else {
		b.handlers[eventType] = kept
	}

	b.logger.Debug("Handler unsubscribed",
		zap.String("event_type", string(eventType)),
		zap.Uint64("subscription_id", id))
}

// Shutdown stops accepting events, delivers what is queued and waits for the workers.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.closeMu.Lock()
	if !b.closed {
		b.closed = true
		for _, q := range b.queues {
			close(q)
		}
	}
	b.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("Event bus stopped", zap.Uint64("dropped", b.dropped.Load()))
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout")
		return ctx.Err()
	}
}

// BusStats describes the bus queues and its subscriptions.
type BusStats struct {
	Workers         int
	BufferSize      int
	PendingEvents   int
	DroppedEvents   uint64
	HandlersPerType map[EventType]int
}

// Stats returns statistics about the event bus.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := BusStats{
		Workers:         len(b.queues),
		BufferSize:      b.bufferSize,
		DroppedEvents:   b.dropped.Load(),
		HandlersPerType: make(map[EventType]int, len(b.handlers)),
	}
	for _, q := range b.queues {
		stats.PendingEvents += len(q)
	}
	for eventType, regs := range b.handlers {
		stats.HandlersPerType[eventType] = len(regs)
	}
	return stats
}
