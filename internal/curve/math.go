// internal/curve/math.go
package curve

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Rounding задает направление округления при целочисленном делении.
type Rounding int

const (
	RoundDown Rounding = iota
	RoundUp
)

// mulDiv вычисляет a*b/c в 128+ битной арифметике с заданным округлением.
func mulDiv(a, b, c uint64, rounding Rounding) (uint64, error) {
	if c == 0 {
		return 0, ErrDivisionByZero
	}
	prod := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	return divBig(prod, new(big.Int).SetUint64(c), rounding)
}

// divBig делит num на den и проверяет, что результат помещается в uint64.
func divBig(num, den *big.Int, rounding Rounding) (uint64, error) {
	if den.Sign() == 0 {
		return 0, ErrDivisionByZero
	}
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if rounding == RoundUp && r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	if !q.IsUint64() {
		return 0, fmt.Errorf("%w: result %s overflows uint64", ErrInsufficientLiquidity, q)
	}
	return q.Uint64(), nil
}

// spotPrice returns SOL per whole token for the given combined reserves.
//
// price = (solLamports / 10^9) / (tokenUnits / 10^6)
func spotPrice(solLamports, tokenUnits uint64) (decimal.Decimal, error) {
	if tokenUnits == 0 {
		return decimal.Zero, ErrDivisionByZero
	}
	sol := LamportsToSol(solLamports)
	tokens := UnitsToTokens(tokenUnits)
	return sol.DivRound(tokens, pricePrecision), nil
}

// marketCap multiplies a SOL price by the total supply in whole tokens.
func marketCap(price decimal.Decimal, totalSupply uint64) decimal.Decimal {
	return price.Mul(UnitsToTokens(totalSupply))
}

// percentChange returns |to-from|/from*100.
func percentChange(from, to decimal.Decimal) decimal.Decimal {
	if from.IsZero() {
		return decimal.Zero
	}
	return to.Sub(from).Abs().DivRound(from, pricePrecision).Mul(hundred)
}

var hundred = decimal.NewFromInt(100)

func newUint(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}
