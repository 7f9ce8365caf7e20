// =============================
// File: internal/curve/fee.go
// =============================
package curve

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// feeDenominator выражает процент комиссии с точностью до 0.0001%.
	feeDenominator = 1_000_000
)

var maxFeePercent = decimal.NewFromInt(10)

// FeeModel рассчитывает комиссию платформы. Процент проверяется один раз при создании.
type FeeModel struct {
	percent   decimal.Decimal
	numerator uint64
}

// ValidateFeePercent проверяет, что процент комиссии лежит в [0, 10] и представим с точностью 0.0001%.
func ValidateFeePercent(percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(maxFeePercent) {
		return fmt.Errorf("%w: platform fee percent %s outside [0, 10]", ErrInvalidConfig, percent)
	}
	scaled := percent.Shift(4)
	if !scaled.Equal(scaled.Truncate(0)) {
		return fmt.Errorf("%w: platform fee percent %s finer than 0.0001%%", ErrInvalidConfig, percent)
	}
	return nil
}

// NewFeeModel validates the percent and returns a ready fee model.
func NewFeeModel(percent decimal.Decimal) (FeeModel, error) {
	if err := ValidateFeePercent(percent); err != nil {
		return FeeModel{}, err
	}
	return FeeModel{
		percent:   percent,
		numerator: uint64(percent.Shift(4).IntPart()),
	}, nil
}

// Percent returns the configured fee percent.
func (f FeeModel) Percent() decimal.Decimal {
	return f.percent
}

// Fee returns floor(amount * percent / 100).
func (f FeeModel) Fee(amount uint64) uint64 {
	if f.numerator == 0 || amount == 0 {
		return 0
	}
	// numerator < feeDenominator, результат всегда помещается в uint64
	fee, _ := mulDiv(amount, f.numerator, feeDenominator, RoundDown)
	return fee
}

// ComputeFee is the stateless form of FeeModel.Fee.
func ComputeFee(amount uint64, feePercent decimal.Decimal) (uint64, error) {
	model, err := NewFeeModel(feePercent)
	if err != nil {
		return 0, err
	}
	return model.Fee(amount), nil
}
