// internal/trading/types.go
package trading

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

var (
	// ErrSlippageExceeded is returned when the quote moves past the trader's tolerance.
	ErrSlippageExceeded = errors.New("slippage tolerance exceeded")
	// ErrSettlementFailed wraps a settlement rejection; curve state is untouched.
	ErrSettlementFailed = errors.New("settlement failed")
	// ErrUnappliedSettlement means the trade settled but the curve refused it.
	ErrUnappliedSettlement = errors.New("settled trade could not be applied")
	// ErrDeskClosed is returned after Shutdown.
	ErrDeskClosed = errors.New("trade desk is closed")
	// ErrInsufficientBalance is returned by settlement when a trader sells more tokens than they hold.
	ErrInsufficientBalance = errors.New("insufficient token balance")
)

// Order is a trader's request against one curve.
// Amount is lamports for a buy and base units for a sell.
type Order struct {
	Mint               solana.PublicKey
	Trader             solana.PublicKey
	Side               curve.Side
	Amount             uint64
	MaxSlippagePercent decimal.Decimal // ноль - без ограничения
}

// SettlementRequest is handed to the settlement service.
type SettlementRequest struct {
	Trader solana.PublicKey
	Quote  *curve.TradeQuote
}

// Receipt confirms a settled transaction.
type Receipt struct {
	Signature   solana.Signature
	Slot        uint64
	ConfirmedAt time.Time
}

// Settlement submits a trade on-chain and returns only after confirmation.
type Settlement interface {
	Submit(ctx context.Context, req SettlementRequest) (Receipt, error)
}

// Curves gives the desk access to engines and their persistence.
type Curves interface {
	Engine(mint solana.PublicKey) (*curve.Engine, error)
	Save(ctx context.Context, mint solana.PublicKey) error
}

// TradeLog records applied trades.
type TradeLog interface {
	InsertTrade(ctx context.Context, rec storage.TradeRecord) error
}

// Fill is the outcome of an executed order.
type Fill struct {
	Quote     *curve.TradeQuote
	Receipt   Receipt
	Version   uint64 // curve state version after apply
	Price     decimal.Decimal
	Trader    solana.PublicKey
	Submitted time.Time
}

// DeskConfig tunes the per-token actors.
type DeskConfig struct {
	SettlementTimeout time.Duration
	QueueSize         int
}

// DefaultDeskConfig returns a 30s settlement timeout and a queue of 64 orders per token.
func DefaultDeskConfig() DeskConfig {
	return DeskConfig{
		SettlementTimeout: 30 * time.Second,
		QueueSize:         64,
	}
}
