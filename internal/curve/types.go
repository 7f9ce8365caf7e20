// =============================
// File: internal/curve/types.go
// =============================
package curve

import (
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

const (
	// Стандартные десятичные знаки для SOL и токенов кривой
	SolDecimals   = 9
	TokenDecimals = 6

	LamportsPerSol = 1_000_000_000
	TokenUnit      = 1_000_000

	// Точность деления при расчете цены (знаков после запятой)
	pricePrecision int32 = 24
)

// Side определяет направление сделки относительно кривой.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Config хранит неизменяемые параметры кривой одного токена.
type Config struct {
	VirtualSolReserves   uint64          // lamports
	VirtualTokenReserves uint64          // базовые единицы токена
	PlatformFeePercent   decimal.Decimal // 0..10
	MaxMarketCap         decimal.Decimal // потолок капитализации (прокси для graduation)
	TotalSupply          uint64          // базовые единицы токена
}

// DefaultConfig возвращает параметры по умолчанию: 30 SOL / 1 073 000 000 токенов, комиссия 0.99%.
func DefaultConfig() Config {
	return Config{
		VirtualSolReserves:   30 * LamportsPerSol,
		VirtualTokenReserves: 1_073_000_000 * TokenUnit,
		PlatformFeePercent:   decimal.RequireFromString("0.99"),
		MaxMarketCap:         decimal.NewFromInt(69_000),
		TotalSupply:          1_000_000_000 * TokenUnit,
	}
}

// Validate проверяет конфигурацию. Ошибки конфигурации возвращаются только здесь, не во время торговли.
func (c Config) Validate() error {
	if c.VirtualSolReserves == 0 {
		return fmt.Errorf("%w: virtual sol reserves must be positive", ErrInvalidConfig)
	}
	if c.VirtualTokenReserves == 0 {
		return fmt.Errorf("%w: virtual token reserves must be positive", ErrInvalidConfig)
	}
	if c.TotalSupply == 0 {
		return fmt.Errorf("%w: total supply must be positive", ErrInvalidConfig)
	}
	if c.MaxMarketCap.IsNegative() {
		return fmt.Errorf("%w: max market cap must not be negative", ErrInvalidConfig)
	}
	if err := ValidateFeePercent(c.PlatformFeePercent); err != nil {
		return err
	}
	return nil
}

// K возвращает инвариант virtualSol * virtualToken в единицах lamports * base units.
func (c Config) K() *big.Int {
	return new(big.Int).Mul(
		new(big.Int).SetUint64(c.VirtualSolReserves),
		new(big.Int).SetUint64(c.VirtualTokenReserves),
	)
}

// State is the mutable reserve state of one curve. Only Engine writes it.
type State struct {
	RealSolReserves   uint64 // lamports deposited by executed trades
	RealTokenReserves uint64 // tokens distributed out of the virtual pool
	Version           uint64
	Graduated         bool
}

// Snapshot is a read-only copy of a curve handed to consumers.
type Snapshot struct {
	Mint   solana.PublicKey
	Config Config
	State  State
	// Graduating - торговля приостановлена на время создания пула
	Graduating bool
}

// SolReserves returns the combined virtual+real SOL reserve in lamports.
func (s Snapshot) SolReserves() uint64 {
	return s.Config.VirtualSolReserves + s.State.RealSolReserves
}

// TokenReserves returns the combined token reserve, zero once the pool is drained.
func (s Snapshot) TokenReserves() uint64 {
	if s.State.RealTokenReserves >= s.Config.VirtualTokenReserves {
		return 0
	}
	return s.Config.VirtualTokenReserves - s.State.RealTokenReserves
}

// K returns the constant product of the combined reserves at this snapshot.
func (s Snapshot) K() *big.Int {
	return new(big.Int).Mul(
		new(big.Int).SetUint64(s.SolReserves()),
		new(big.Int).SetUint64(s.TokenReserves()),
	)
}

// Price returns the spot price in SOL per whole token.
func (s Snapshot) Price() (decimal.Decimal, error) {
	return spotPrice(s.SolReserves(), s.TokenReserves())
}

// MarketCap returns price * total supply, denominated in SOL.
func (s Snapshot) MarketCap() (decimal.Decimal, error) {
	price, err := s.Price()
	if err != nil {
		return decimal.Zero, err
	}
	return marketCap(price, s.Config.TotalSupply), nil
}

// TradeQuote is an immutable quote computed against one snapshot version.
type TradeQuote struct {
	Mint        solana.PublicKey
	Side        Side
	BaseVersion uint64

	InputAmount  uint64 // lamports for buy, base units for sell
	OutputAmount uint64 // base units for buy, lamports (after fee) for sell
	PlatformFee  uint64 // lamports

	// Точное движение резервов кривой
	SolDelta   uint64
	TokenDelta uint64

	SpotPriceBefore     decimal.Decimal
	SpotPriceAfter      decimal.Decimal
	EffectivePrice      decimal.Decimal
	PriceImpactPercent  decimal.Decimal
	SlippagePercent     decimal.Decimal
	NewMarketCap        decimal.Decimal
	ReachesMaxMarketCap bool
}

// LamportsToSol converts lamports into a SOL decimal.
func LamportsToSol(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -SolDecimals)
}

// UnitsToTokens converts base units into whole tokens.
func UnitsToTokens(units uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -TokenDecimals)
}

// SolToLamports converts a SOL decimal into lamports, truncating sub-lamport dust.
func SolToLamports(sol decimal.Decimal) (uint64, error) {
	if sol.IsNegative() {
		return 0, fmt.Errorf("%w: negative sol amount %s", ErrInvalidAmount, sol)
	}
	v := sol.Shift(SolDecimals).Truncate(0).BigInt()
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: sol amount %s overflows", ErrInvalidAmount, sol)
	}
	return v.Uint64(), nil
}

// TokensToUnits converts whole tokens into base units, truncating dust.
func TokensToUnits(tokens decimal.Decimal) (uint64, error) {
	if tokens.IsNegative() {
		return 0, fmt.Errorf("%w: negative token amount %s", ErrInvalidAmount, tokens)
	}
	v := tokens.Shift(TokenDecimals).Truncate(0).BigInt()
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: token amount %s overflows", ErrInvalidAmount, tokens)
	}
	return v.Uint64(), nil
}
