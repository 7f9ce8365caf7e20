// internal/curve/quote.go
package curve

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// QuoteBuy рассчитывает покупку токенов за solIn lamports по формуле constant product.
//
//	fee       = solIn * feePercent / 100
//	netIn     = solIn - fee
//	newSol    = curSol + netIn
//	newToken  = ceil(k / newSol),  k = curSol * curToken
//	tokensOut = curToken - newToken
//
// newToken округляется вверх, поэтому (curSol+netIn)*(curToken-tokensOut) >= k
// и разница меньше newSol: пул никогда не отдает больше, чем позволяет инвариант.
func QuoteBuy(snap Snapshot, fees FeeModel, solIn uint64) (*TradeQuote, error) {
	if snap.State.Graduated {
		return nil, ErrCurveGraduated
	}
	if snap.Graduating {
		return nil, ErrCurveGraduating
	}
	if solIn == 0 {
		return nil, fmt.Errorf("%w: sol input must be positive", ErrInvalidAmount)
	}

	curSol := snap.SolReserves()
	curToken := snap.TokenReserves()
	if curToken == 0 {
		return nil, ErrPoolExhausted
	}

	fee := fees.Fee(solIn)
	netIn := solIn - fee
	newSol := curSol + netIn
	if newSol < curSol {
		return nil, fmt.Errorf("%w: sol input %d overflows reserves", ErrInvalidAmount, solIn)
	}

	newToken, err := divBig(snap.K(), newUint(newSol), RoundUp)
	if err != nil {
		return nil, err
	}
	if newToken == 0 {
		return nil, fmt.Errorf("%w: trade would leave no token reserves", ErrInsufficientLiquidity)
	}
	tokensOut := curToken - newToken
	if tokensOut >= curToken {
		return nil, fmt.Errorf("%w: trade would exhaust the pool", ErrInsufficientLiquidity)
	}
	if tokensOut == 0 {
		return nil, fmt.Errorf("%w: sol input %d buys no tokens", ErrInvalidAmount, solIn)
	}

	before, err := spotPrice(curSol, curToken)
	if err != nil {
		return nil, err
	}
	after, err := spotPrice(newSol, newToken)
	if err != nil {
		return nil, err
	}
	effective := LamportsToSol(netIn).DivRound(UnitsToTokens(tokensOut), pricePrecision)

	q := &TradeQuote{
		Mint:            snap.Mint,
		Side:            SideBuy,
		BaseVersion:     snap.State.Version,
		InputAmount:     solIn,
		OutputAmount:    tokensOut,
		PlatformFee:     fee,
		SolDelta:        netIn,
		TokenDelta:      tokensOut,
		SpotPriceBefore: before,
		SpotPriceAfter:  after,
		EffectivePrice:  effective,
	}
	fillQuoteMetrics(q, snap.Config)
	return q, nil
}

// QuoteSell рассчитывает продажу tokenIn базовых единиц. Комиссия берется с выхода в SOL,
// в отличие от покупки, где она берется со входа.
func QuoteSell(snap Snapshot, fees FeeModel, tokenIn uint64) (*TradeQuote, error) {
	if snap.State.Graduated {
		return nil, ErrCurveGraduated
	}
	if snap.Graduating {
		return nil, ErrCurveGraduating
	}
	if tokenIn == 0 {
		return nil, fmt.Errorf("%w: token input must be positive", ErrInvalidAmount)
	}
	if tokenIn > snap.State.RealTokenReserves {
		return nil, fmt.Errorf("%w: %d tokens offered, only %d distributed",
			ErrInsufficientLiquidity, tokenIn, snap.State.RealTokenReserves)
	}

	curSol := snap.SolReserves()
	curToken := snap.TokenReserves()
	if curToken == 0 {
		return nil, ErrDivisionByZero
	}

	newToken := curToken + tokenIn
	if newToken < curToken {
		return nil, fmt.Errorf("%w: token input %d overflows reserves", ErrInvalidAmount, tokenIn)
	}
	newSol, err := divBig(snap.K(), newUint(newToken), RoundUp)
	if err != nil {
		return nil, err
	}
	if newSol >= curSol {
		return nil, fmt.Errorf("%w: token input %d returns no sol", ErrInvalidAmount, tokenIn)
	}
	grossOut := curSol - newSol
	if grossOut > snap.State.RealSolReserves {
		return nil, fmt.Errorf("%w: %d lamports requested, only %d real",
			ErrInsufficientLiquidity, grossOut, snap.State.RealSolReserves)
	}

	fee := fees.Fee(grossOut)
	solOut := grossOut - fee

	before, err := spotPrice(curSol, curToken)
	if err != nil {
		return nil, err
	}
	after, err := spotPrice(newSol, newToken)
	if err != nil {
		return nil, err
	}
	effective := LamportsToSol(grossOut).DivRound(UnitsToTokens(tokenIn), pricePrecision)

	q := &TradeQuote{
		Mint:            snap.Mint,
		Side:            SideSell,
		BaseVersion:     snap.State.Version,
		InputAmount:     tokenIn,
		OutputAmount:    solOut,
		PlatformFee:     fee,
		SolDelta:        grossOut,
		TokenDelta:      tokenIn,
		SpotPriceBefore: before,
		SpotPriceAfter:  after,
		EffectivePrice:  effective,
	}
	fillQuoteMetrics(q, snap.Config)
	return q, nil
}

// fillQuoteMetrics computes impact, slippage and the post-trade market cap.
func fillQuoteMetrics(q *TradeQuote, cfg Config) {
	q.PriceImpactPercent = percentChange(q.SpotPriceBefore, q.SpotPriceAfter)
	q.SlippagePercent = percentChange(q.SpotPriceBefore, q.EffectivePrice)
	q.NewMarketCap = marketCap(q.SpotPriceAfter, cfg.TotalSupply)
	q.ReachesMaxMarketCap = cfg.MaxMarketCap.IsPositive() && q.NewMarketCap.GreaterThanOrEqual(cfg.MaxMarketCap)
}

// MinOutput returns the quote output reduced by the given slippage tolerance (percent).
func (q *TradeQuote) MinOutput(slippagePercent decimal.Decimal) uint64 {
	if slippagePercent.LessThanOrEqual(decimal.Zero) {
		return q.OutputAmount
	}
	keep := hundred.Sub(slippagePercent)
	if keep.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	out := decimal.NewFromBigInt(newUint(q.OutputAmount), 0).Mul(keep).Div(hundred).Truncate(0)
	return out.BigInt().Uint64()
}
