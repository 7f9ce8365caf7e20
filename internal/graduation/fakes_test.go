package graduation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

type fakeCurves struct {
	mu      sync.Mutex
	engines map[solana.PublicKey]*curve.Engine
	order   []solana.PublicKey
	saves   atomic.Int32
}

func newFakeCurves() *fakeCurves {
	return &fakeCurves{engines: make(map[solana.PublicKey]*curve.Engine)}
}

func (f *fakeCurves) add(e *curve.Engine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.engines[e.Mint()] = e
	f.order = append(f.order, e.Mint())
}

func (f *fakeCurves) Engine(mint solana.PublicKey) (*curve.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.engines[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return e, nil
}

func (f *fakeCurves) Mints() []solana.PublicKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]solana.PublicKey(nil), f.order...)
}

func (f *fakeCurves) Save(context.Context, solana.PublicKey) error {
	f.saves.Add(1)
	return nil
}

type fakeEventStore struct {
	mu     sync.Mutex
	events map[solana.PublicKey]Event
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{events: make(map[solana.PublicKey]Event)}
}

func (s *fakeEventStore) GetGraduation(_ context.Context, mint solana.PublicKey) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &ev, nil
}

func (s *fakeEventStore) InsertGraduation(_ context.Context, ev *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.Mint]; ok {
		return storage.ErrDuplicateKey
	}
	s.events[ev.Mint] = *ev
	return nil
}

func (s *fakeEventStore) ListGraduations(context.Context) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Event, 0, len(s.events))
	for _, ev := range s.events {
		ev := ev
		out = append(out, &ev)
	}
	return out, nil
}

// fakePools fails the first `failures` calls, optionally blocks, then succeeds.
type fakePools struct {
	calls    atomic.Int32
	failures int32
	delay    time.Duration
	block    bool
	// during runs inside CreatePool before it returns
	during func(ctx context.Context, req PoolRequest)

	mu   sync.Mutex
	keys []string
	pool solana.PublicKey
}

var errPoolDown = errors.New("dex unavailable")

func (p *fakePools) CreatePool(ctx context.Context, req PoolRequest) (PoolResult, error) {
	n := p.calls.Add(1)
	p.mu.Lock()
	p.keys = append(p.keys, req.IdempotencyKey)
	p.mu.Unlock()

	if p.block {
		<-ctx.Done()
		return PoolResult{}, ctx.Err()
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return PoolResult{}, ctx.Err()
		}
	}
	if p.during != nil {
		p.during(ctx, req)
	}
	if n <= p.failures {
		return PoolResult{}, errPoolDown
	}
	if p.pool.IsZero() {
		p.pool = solana.NewWallet().PublicKey()
	}
	return PoolResult{PoolID: p.pool, Signature: solana.Signature{1, 2, 3}}, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturePublisher) Publish(e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capturePublisher) ofType(t events.EventType) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, e := range c.events {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}
