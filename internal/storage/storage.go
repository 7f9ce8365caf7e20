// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchpad/internal/curve"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey is returned when an insert-only record already exists.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrInvalidInput is returned for nil or incomplete records.
	ErrInvalidInput = errors.New("invalid input")
	// ErrVersionConflict is returned when an optimistic state update lost a race.
	ErrVersionConflict = errors.New("version conflict")
)

// CurveRecord is the durable form of one token curve.
type CurveRecord struct {
	Mint      solana.PublicKey
	Creator   solana.PublicKey
	Name      string
	Symbol    string
	Config    curve.Config
	State     curve.State
	CreatedAt time.Time
}

// CurveStore определяет хранилище состояний кривых.
// SaveState обновляет запись только если сохраненная версия равна expectedVersion.
type CurveStore interface {
	CreateCurve(ctx context.Context, rec CurveRecord) error
	GetCurve(ctx context.Context, mint solana.PublicKey) (CurveRecord, error)
	ListCurves(ctx context.Context) ([]CurveRecord, error)
	SaveState(ctx context.Context, mint solana.PublicKey, state curve.State, expectedVersion uint64) error
}

// TradeRecord is one applied trade. Records are insert-only and keyed by (Mint, Version).
type TradeRecord struct {
	Mint        solana.PublicKey
	Trader      solana.PublicKey
	Side        curve.Side
	SolAmount   uint64
	TokenAmount uint64
	PlatformFee uint64
	Signature   solana.Signature
	Version     uint64
	ExecutedAt  time.Time
}

// TradeStore хранит журнал примененных сделок; по нему восстанавливаются балансы и объем после рестарта.
type TradeStore interface {
	InsertTrade(ctx context.Context, rec TradeRecord) error
	ListTrades(ctx context.Context) ([]TradeRecord, error)
}
