// internal/fund/fund.go
package fund

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/graduation"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

var (
	// ErrUnauthorized is returned when someone other than the creator withdraws.
	ErrUnauthorized = errors.New("unauthorized access")
	// ErrInsufficientFunds is returned when the amount exceeds what is left to withdraw.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNotGraduated is returned before the token has graduated.
	ErrNotGraduated = errors.New("token has not graduated")
)

// Withdrawal is an append-only record of a creator withdrawal.
type Withdrawal struct {
	ID        string
	Mint      solana.PublicKey
	Creator   solana.PublicKey
	Amount    uint64 // lamports
	Remaining uint64 // lamports left after this withdrawal
	CreatedAt time.Time
}

// Store persists withdrawals in insert-only fashion.
type Store interface {
	InsertWithdrawal(ctx context.Context, w *Withdrawal) error
	ListWithdrawals(ctx context.Context, mint solana.PublicKey) ([]*Withdrawal, error)
}

// GraduationReader returns the graduation event of a mint.
type GraduationReader interface {
	GetGraduation(ctx context.Context, mint solana.PublicKey) (*graduation.Event, error)
}

// Creators resolves the creator of a registered token.
type Creators interface {
	Creator(mint solana.PublicKey) (solana.PublicKey, error)
}

// Service управляет выводом средств создателем после выпуска токена на DEX.
// Доступная сумма - остаток SOL из распределения ликвидности минус прошлые выводы.
type Service struct {
	graduations GraduationReader
	store       Store
	creators    Creators
	publisher   events.Publisher
	logger      *zap.Logger
	now         func() time.Time

	mu    sync.Mutex
	locks map[solana.PublicKey]*sync.Mutex
}

// NewService creates the funding pool service. publisher may be nil.
func NewService(graduations GraduationReader, store Store, creators Creators, publisher events.Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		graduations: graduations,
		store:       store,
		creators:    creators,
		publisher:   publisher,
		logger:      logger.Named("fund"),
		now:         time.Now,
		locks:       make(map[solana.PublicKey]*sync.Mutex),
	}
}

// Available returns the lamports the creator can still withdraw.
func (s *Service) Available(ctx context.Context, mint solana.PublicKey) (uint64, error) {
	ev, err := s.graduations.GetGraduation(ctx, mint)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, ErrNotGraduated
		}
		return 0, fmt.Errorf("load graduation event: %w", err)
	}
	withdrawn, err := s.withdrawn(ctx, mint)
	if err != nil {
		return 0, err
	}
	if withdrawn >= ev.Allocation.RemainingSol {
		return 0, nil
	}
	return ev.Allocation.RemainingSol - withdrawn, nil
}

// Withdraw transfers amount lamports to the creator's balance.
func (s *Service) Withdraw(ctx context.Context, mint, caller solana.PublicKey, amount uint64) (*Withdrawal, error) {
	if amount == 0 {
		return nil, fmt.Errorf("%w: withdrawal amount must be positive", curve.ErrInvalidAmount)
	}

	creator, err := s.creators.Creator(mint)
	if err != nil {
		return nil, err
	}
	if !creator.Equals(caller) {
		return nil, ErrUnauthorized
	}

	unlock := s.lock(mint)
	defer unlock()

	available, err := s.Available(ctx, mint)
	if err != nil {
		return nil, err
	}
	if amount > available {
		return nil, fmt.Errorf("%w: requested %d lamports, available %d", ErrInsufficientFunds, amount, available)
	}

	w := &Withdrawal{
		ID:        uuid.New().String(),
		Mint:      mint,
		Creator:   caller,
		Amount:    amount,
		Remaining: available - amount,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertWithdrawal(ctx, w); err != nil {
		return nil, fmt.Errorf("insert withdrawal: %w", err)
	}

	s.logger.Info("Funds withdrawn",
		zap.String("mint", mint.String()),
		zap.String("creator", caller.String()),
		zap.Uint64("amount", amount),
		zap.Uint64("remaining", w.Remaining))

	if s.publisher != nil {
		if err := s.publisher.Publish(events.FundsWithdrawnEvent{
			BaseEvent: events.NewBase(events.FundsWithdrawn, w.CreatedAt),
			Mint:      mint,
			Creator:   caller,
			Amount:    amount,
			Remaining: w.Remaining,
		}); err != nil {
			s.logger.Warn("Failed to publish withdrawal event", zap.Error(err))
		}
	}

	out := *w
	return &out, nil
}

func (s *Service) withdrawn(ctx context.Context, mint solana.PublicKey) (uint64, error) {
	list, err := s.store.ListWithdrawals(ctx, mint)
	if err != nil {
		return 0, fmt.Errorf("list withdrawals: %w", err)
	}
	var total uint64
	for _, w := range list {
		total += w.Amount
	}
	return total, nil
}

func (s *Service) lock(mint solana.PublicKey) func() {
	s.mu.Lock()
	m, ok := s.locks[mint]
	if !ok {
		m = &sync.Mutex{}
		s.locks[mint] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}
