// internal/api/types.go
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/fund"
	"github.com/rovshanmuradov/launchpad/internal/graduation"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/trading"
)

type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type CreateTokenRequest struct {
	Mint    string `json:"mint,omitempty"`
	Creator string `json:"creator"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type TokenResponse struct {
	Mint              string          `json:"mint"`
	Creator           string          `json:"creator"`
	Name              string          `json:"name"`
	Symbol            string          `json:"symbol"`
	CreatedAt         time.Time       `json:"created_at"`
	Price             decimal.Decimal `json:"price"`
	MarketCap         decimal.Decimal `json:"market_cap"`
	RealSolReserves   uint64          `json:"real_sol_reserves"`
	RealTokenReserves uint64          `json:"real_token_reserves"`
	Version           uint64          `json:"version"`
	Graduated         bool            `json:"graduated"`
}

type QuoteResponse struct {
	Mint                string          `json:"mint"`
	Side                string          `json:"side"`
	BaseVersion         uint64          `json:"base_version"`
	InputAmount         uint64          `json:"input_amount"`
	OutputAmount        uint64          `json:"output_amount"`
	PlatformFee         uint64          `json:"platform_fee"`
	SpotPriceBefore     decimal.Decimal `json:"spot_price_before"`
	SpotPriceAfter      decimal.Decimal `json:"spot_price_after"`
	EffectivePrice      decimal.Decimal `json:"effective_price"`
	PriceImpactPercent  decimal.Decimal `json:"price_impact_percent"`
	SlippagePercent     decimal.Decimal `json:"slippage_percent"`
	NewMarketCap        decimal.Decimal `json:"new_market_cap"`
	ReachesMaxMarketCap bool            `json:"reaches_max_market_cap"`
}

type TradeRequest struct {
	Trader             string          `json:"trader"`
	Side               string          `json:"side"`
	Amount             uint64          `json:"amount"`
	MaxSlippagePercent decimal.Decimal `json:"max_slippage_percent"`
}

type TradeResponse struct {
	Quote     QuoteResponse   `json:"quote"`
	Signature string          `json:"signature"`
	Slot      uint64          `json:"slot"`
	Version   uint64          `json:"version"`
	Price     decimal.Decimal `json:"price"`
}

type GraduationResponse struct {
	Mint                 string                `json:"mint"`
	PoolID               string                `json:"pool_id"`
	Signature            string                `json:"signature"`
	IdempotencyKey       string                `json:"idempotency_key"`
	Allocation           graduation.Allocation `json:"allocation"`
	LiquidityLockedUntil *time.Time            `json:"liquidity_locked_until,omitempty"`
	GraduatedAt          time.Time             `json:"graduated_at"`
}

type FundsResponse struct {
	Mint      string `json:"mint"`
	Available uint64 `json:"available"`
}

type WithdrawRequest struct {
	Creator string `json:"creator"`
	Amount  uint64 `json:"amount"`
}

type WithdrawalResponse struct {
	ID        string    `json:"id"`
	Amount    uint64    `json:"amount"`
	Remaining uint64    `json:"remaining"`
	CreatedAt time.Time `json:"created_at"`
}

func tokenResponse(info launchpad.TokenInfo) TokenResponse {
	resp := TokenResponse{
		Mint:              info.Mint.String(),
		Creator:           info.Creator.String(),
		Name:              info.Name,
		Symbol:            info.Symbol,
		CreatedAt:         info.CreatedAt,
		RealSolReserves:   info.Snapshot.State.RealSolReserves,
		RealTokenReserves: info.Snapshot.State.RealTokenReserves,
		Version:           info.Snapshot.State.Version,
		Graduated:         info.Snapshot.State.Graduated,
	}
	// исчерпанная кривая не имеет цены; отдаем нули
	if price, err := info.Snapshot.Price(); err == nil {
		resp.Price = price
	}
	if mc, err := info.Snapshot.MarketCap(); err == nil {
		resp.MarketCap = mc
	}
	return resp
}

func quoteResponse(q *curve.TradeQuote) QuoteResponse {
	return QuoteResponse{
		Mint:                q.Mint.String(),
		Side:                string(q.Side),
		BaseVersion:         q.BaseVersion,
		InputAmount:         q.InputAmount,
		OutputAmount:        q.OutputAmount,
		PlatformFee:         q.PlatformFee,
		SpotPriceBefore:     q.SpotPriceBefore,
		SpotPriceAfter:      q.SpotPriceAfter,
		EffectivePrice:      q.EffectivePrice,
		PriceImpactPercent:  q.PriceImpactPercent,
		SlippagePercent:     q.SlippagePercent,
		NewMarketCap:        q.NewMarketCap,
		ReachesMaxMarketCap: q.ReachesMaxMarketCap,
	}
}

func tradeResponse(f *trading.Fill) TradeResponse {
	return TradeResponse{
		Quote:     quoteResponse(f.Quote),
		Signature: f.Receipt.Signature.String(),
		Slot:      f.Receipt.Slot,
		Version:   f.Version,
		Price:     f.Price,
	}
}

func graduationResponse(ev *graduation.Event) GraduationResponse {
	resp := GraduationResponse{
		Mint:           ev.Mint.String(),
		PoolID:         ev.PoolID.String(),
		Signature:      ev.Signature.String(),
		IdempotencyKey: ev.IdempotencyKey,
		Allocation:     ev.Allocation,
		GraduatedAt:    ev.CreatedAt,
	}
	if !ev.LiquidityLockedUntil.IsZero() {
		until := ev.LiquidityLockedUntil
		resp.LiquidityLockedUntil = &until
	}
	return resp
}

func withdrawalResponse(w *fund.Withdrawal) WithdrawalResponse {
	return WithdrawalResponse{ID: w.ID, Amount: w.Amount, Remaining: w.Remaining, CreatedAt: w.CreatedAt}
}
