// internal/curve/errors.go
package curve

import "errors"

var (
	// ErrInvalidAmount is returned for zero or unrepresentable trade inputs. Always a caller bug.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidConfig is returned when curve or fee parameters are out of range.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInsufficientLiquidity is returned when the pool cannot satisfy a trade.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrDivisionByZero is returned when the token reserve is depleted.
	ErrDivisionByZero = errors.New("division by zero: token reserves depleted")

	// ErrPoolExhausted is returned by buy quotes once no tokens remain on the curve.
	ErrPoolExhausted = errors.New("pool exhausted")

	// ErrStaleQuote is returned by Apply when the quote was computed against an older state version.
	ErrStaleQuote = errors.New("stale quote: curve state changed")

	// ErrCurveGraduated is returned once the token has moved to an external DEX.
	ErrCurveGraduated = errors.New("curve graduated: trading moved to dex")

	// ErrCurveGraduating is returned while the liquidity pool is being created. Trading resumes if creation fails.
	ErrCurveGraduating = errors.New("curve graduating: trading suspended")
)
