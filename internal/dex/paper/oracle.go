// internal/dex/paper/oracle.go
package paper

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNoPrice is returned when no SOL/USD price is configured.
var ErrNoPrice = errors.New("sol usd price not configured")

// StaticOracle returns a fixed SOL/USD price.
type StaticOracle struct {
	price decimal.Decimal
}

// NewStaticOracle creates an oracle with a fixed price.
func NewStaticOracle(price decimal.Decimal) StaticOracle {
	return StaticOracle{price: price}
}

// SolUsdPrice implements graduation.PriceOracle.
func (o StaticOracle) SolUsdPrice(_ context.Context) (decimal.Decimal, error) {
	if !o.price.IsPositive() {
		return decimal.Zero, ErrNoPrice
	}
	return o.price, nil
}
