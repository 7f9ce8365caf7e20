// internal/events/types.go
package events

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// EventType represents the type of event.
type EventType string

const (
	// Lifecycle events
	TokenCreated   EventType = "token.created"
	TokenGraduated EventType = "token.graduated"

	// Trading events
	TradeApplied EventType = "trade.applied"
	TradeFailed  EventType = "trade.failed"

	// Graduation attempts that did not reach the terminal state
	GraduationFailed EventType = "graduation.failed"

	// Funding pool events
	FundsWithdrawn EventType = "funds.withdrawn"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// Keyed is implemented by events that belong to one token. The bus delivers
// events of the same mint in publish order.
type Keyed interface {
	EventMint() solana.PublicKey
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// NewBase stamps an event type with the given time.
func NewBase(t EventType, at time.Time) BaseEvent {
	return BaseEvent{EventType: t, EventTime: at}
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// TokenCreatedEvent is emitted when a new curve is registered.
type TokenCreatedEvent struct {
	BaseEvent
	Mint    solana.PublicKey
	Creator solana.PublicKey
}

// TradeAppliedEvent is emitted after a settled trade has been applied to the curve.
type TradeAppliedEvent struct {
	BaseEvent
	Mint        solana.PublicKey
	Trader      solana.PublicKey
	Side        string // "buy" | "sell"
	SolAmount   uint64 // lamports moved in or out of the curve
	TokenAmount uint64 // base units moved in or out of the curve
	PlatformFee uint64
	Signature   solana.Signature
	Version     uint64 // curve state version after apply
	Price       decimal.Decimal
}

// TradeFailedEvent is emitted when settlement or apply rejected a trade.
type TradeFailedEvent struct {
	BaseEvent
	Mint   solana.PublicKey
	Trader solana.PublicKey
	Side   string
	Error  error
}

// TokenGraduatedEvent is emitted exactly once per mint after the DEX pool exists.
type TokenGraduatedEvent struct {
	BaseEvent
	Mint               solana.PublicKey
	PoolID             solana.PublicKey
	Signature          solana.Signature
	SolForLiquidity    uint64
	TokensForLiquidity uint64
	RemainingSol       uint64
}

// GraduationFailedEvent is emitted when an eligible graduation attempt failed.
type GraduationFailedEvent struct {
	BaseEvent
	Mint      solana.PublicKey
	Retryable bool
	Error     error
}

// FundsWithdrawnEvent is emitted when the creator withdraws post-graduation funds.
type FundsWithdrawnEvent struct {
	BaseEvent
	Mint      solana.PublicKey
	Creator   solana.PublicKey
	Amount    uint64
	Remaining uint64
}

func (e TokenCreatedEvent) EventMint() solana.PublicKey     { return e.Mint }
func (e TradeAppliedEvent) EventMint() solana.PublicKey     { return e.Mint }
func (e TradeFailedEvent) EventMint() solana.PublicKey      { return e.Mint }
func (e TokenGraduatedEvent) EventMint() solana.PublicKey   { return e.Mint }
func (e GraduationFailedEvent) EventMint() solana.PublicKey { return e.Mint }
func (e FundsWithdrawnEvent) EventMint() solana.PublicKey   { return e.Mint }
