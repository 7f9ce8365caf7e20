// Package curve implements constant-product bonding-curve pricing for a single token
// traded against SOL, seeded with virtual liquidity.
//
// This package provides:
// - Spot price, market cap and constant product (k) over combined virtual+real reserves.
// - Buy and sell quotes with platform fee, price impact and slippage.
// - A single-mutator Engine that applies confirmed trades with version compare-and-swap.
//
// Units:
//   - SOL amounts are integer lamports (1 SOL = 10^9).
//   - Token amounts are integer base units with 6 decimals (1 token = 10^6).
//   - k and every intermediate product are computed with math/big, so the invariant
//     (curSol + netIn) * (curToken - tokensOut) >= k holds exactly, never approximately.
//   - Prices and percentages are reported as shopspring/decimal values.
//
// Fee asymmetry: buys pay the platform fee on the SOL input, sells pay it on the SOL output.
// Both are therefore collected in SOL.
//
// Usage example:
//
//	engine, err := curve.NewEngine(mint, curve.DefaultConfig(), logger)
//	if err != nil {
//	    return err
//	}
//
//	quote, err := engine.QuoteBuy(10 * curve.LamportsPerSol)
//	if err != nil {
//	    return err
//	}
//
//	// submit and confirm the settlement transaction, then:
//	if err := engine.Apply(quote); err != nil {
//	    return err
//	}
package curve
