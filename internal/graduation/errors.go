// internal/graduation/errors.go
package graduation

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/launchpad/internal/curve"
)

var (
	// ErrInvalidConfig is returned for out-of-range allocation or threshold settings.
	ErrInvalidConfig = curve.ErrInvalidConfig
	// ErrInsufficientLiquidity is returned when the pool share is below the minimum.
	ErrInsufficientLiquidity = curve.ErrInsufficientLiquidity
	// ErrInconsistentState is returned when a curve is closed but no event exists,
	// or when the curve moved while its pool was being created.
	ErrInconsistentState = errors.New("curve state inconsistent with graduation")
)

// NotEligibleError is returned when graduation is attempted before thresholds are met.
type NotEligibleError struct {
	Mint             solana.PublicKey
	MissingLiquidity uint64          // lamports
	MissingMarketCap decimal.Decimal // in the configured denomination
	Status           Status
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("token %s not eligible for graduation: missing liquidity %d lamports, missing market cap %s",
		e.Mint, e.MissingLiquidity, e.MissingMarketCap)
}

// PoolCreationError wraps a failure of the external pool collaborator.
// The token stays eligible and the call may be retried.
type PoolCreationError struct {
	Mint     solana.PublicKey
	Attempts int
	Err      error
}

func (e *PoolCreationError) Error() string {
	return fmt.Sprintf("pool creation for %s failed after %d attempt(s): %v", e.Mint, e.Attempts, e.Err)
}

func (e *PoolCreationError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the caller may retry with the same inputs.
// Business-rule failures (not eligible, invalid config, liquidity) are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var poolErr *PoolCreationError
	if errors.As(err, &poolErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
