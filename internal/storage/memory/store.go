// internal/storage/memory/store.go
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/fund"
	"github.com/rovshanmuradov/launchpad/internal/graduation"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

// Store is an in-memory implementation of storage.CurveStore,
// graduation.EventStore, fund.Store and storage.TradeStore. Values are copied on the way in and out.
type Store struct {
	mu          sync.RWMutex
	curves      map[solana.PublicKey]storage.CurveRecord
	graduations map[solana.PublicKey]graduation.Event
	withdrawals map[solana.PublicKey][]fund.Withdrawal
	trades      []storage.TradeRecord
}

var (
	_ storage.CurveStore    = (*Store)(nil)
	_ graduation.EventStore = (*Store)(nil)
	_ fund.Store            = (*Store)(nil)
	_ storage.TradeStore    = (*Store)(nil)
)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		curves:      make(map[solana.PublicKey]storage.CurveRecord),
		graduations: make(map[solana.PublicKey]graduation.Event),
		withdrawals: make(map[solana.PublicKey][]fund.Withdrawal),
	}
}

// CreateCurve adds a new curve. Returns ErrDuplicateKey if the mint exists.
func (s *Store) CreateCurve(_ context.Context, rec storage.CurveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.curves[rec.Mint]; exists {
		return storage.ErrDuplicateKey
	}
	s.curves[rec.Mint] = rec
	return nil
}

// GetCurve retrieves a curve by mint. Returns ErrNotFound if not exists.
func (s *Store) GetCurve(_ context.Context, mint solana.PublicKey) (storage.CurveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.curves[mint]
	if !exists {
		return storage.CurveRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

// ListCurves returns all curves ordered by creation time.
func (s *Store) ListCurves(_ context.Context) ([]storage.CurveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]storage.CurveRecord, 0, len(s.curves))
	for _, rec := range s.curves {
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Mint.String() < result[j].Mint.String()
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// SaveState replaces the state if the stored version equals expectedVersion.
func (s *Store) SaveState(_ context.Context, mint solana.PublicKey, state curve.State, expectedVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.curves[mint]
	if !exists {
		return storage.ErrNotFound
	}
	if rec.State.Version != expectedVersion {
		return storage.ErrVersionConflict
	}
	rec.State = state
	s.curves[mint] = rec
	return nil
}

// InsertGraduation stores the terminal event. Returns ErrDuplicateKey if one exists.
func (s *Store) InsertGraduation(_ context.Context, ev *graduation.Event) error {
	if ev == nil || ev.Mint.IsZero() {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.graduations[ev.Mint]; exists {
		return storage.ErrDuplicateKey
	}
	s.graduations[ev.Mint] = *ev
	return nil
}

// GetGraduation returns the event of a mint. Returns ErrNotFound if not exists.
func (s *Store) GetGraduation(_ context.Context, mint solana.PublicKey) (*graduation.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, exists := s.graduations[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return &ev, nil
}

// ListGraduations returns all events ordered by creation time.
func (s *Store) ListGraduations(_ context.Context) ([]*graduation.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*graduation.Event, 0, len(s.graduations))
	for _, ev := range s.graduations {
		evCopy := ev
		result = append(result, &evCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// InsertWithdrawal appends a withdrawal. Returns ErrDuplicateKey for a repeated ID.
func (s *Store) InsertWithdrawal(_ context.Context, w *fund.Withdrawal) error {
	if w == nil || w.ID == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.withdrawals[w.Mint] {
		if existing.ID == w.ID {
			return storage.ErrDuplicateKey
		}
	}
	s.withdrawals[w.Mint] = append(s.withdrawals[w.Mint], *w)
	return nil
}

// ListWithdrawals returns the withdrawals of a mint in insertion order.
func (s *Store) ListWithdrawals(_ context.Context, mint solana.PublicKey) ([]*fund.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.withdrawals[mint]
	result := make([]*fund.Withdrawal, 0, len(list))
	for _, w := range list {
		wCopy := w
		result = append(result, &wCopy)
	}
	return result, nil
}

// InsertTrade appends an applied trade. Returns ErrDuplicateKey for a repeated (mint, version).
func (s *Store) InsertTrade(_ context.Context, rec storage.TradeRecord) error {
	if rec.Version == 0 {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.trades {
		if existing.Mint.Equals(rec.Mint) && existing.Version == rec.Version {
			return storage.ErrDuplicateKey
		}
	}
	s.trades = append(s.trades, rec)
	return nil
}

// ListTrades returns all trades in insertion order.
func (s *Store) ListTrades(_ context.Context) ([]storage.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]storage.TradeRecord(nil), s.trades...), nil
}
