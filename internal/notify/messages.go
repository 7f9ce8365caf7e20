// internal/notify/messages.go
package notify

import (
	"fmt"
	"time"

	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/graduation"
)

// envelope - формат сообщения в JetStream
type envelope struct {
	Type      string    `json:"type"`
	Mint      string    `json:"mint"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type graduatedData struct {
	PoolID               string                `json:"pool_id"`
	Signature            string                `json:"signature"`
	IdempotencyKey       string                `json:"idempotency_key"`
	Allocation           graduation.Allocation `json:"allocation"`
	PreStateVersion      uint64                `json:"pre_state_version"`
	LiquidityLockedUntil *time.Time            `json:"liquidity_locked_until,omitempty"`
}

type tradeData struct {
	Trader      string `json:"trader"`
	Side        string `json:"side"`
	SolAmount   uint64 `json:"sol_amount"`
	TokenAmount uint64 `json:"token_amount"`
	PlatformFee uint64 `json:"platform_fee"`
	Signature   string `json:"signature"`
	Version     uint64 `json:"version"`
	Price       string `json:"price"`
}

type failureData struct {
	Trader    string `json:"trader,omitempty"`
	Side      string `json:"side,omitempty"`
	Retryable bool   `json:"retryable"`
	Error     string `json:"error"`
}

type createdData struct {
	Creator string `json:"creator"`
}

type withdrawalData struct {
	Creator   string `json:"creator"`
	Amount    uint64 `json:"amount"`
	Remaining uint64 `json:"remaining"`
}

// graduationMessage builds the envelope and dedup id of a graduation event.
func graduationMessage(ev *graduation.Event) (envelope, string) {
	data := graduatedData{
		PoolID:          ev.PoolID.String(),
		Signature:       ev.Signature.String(),
		IdempotencyKey:  ev.IdempotencyKey,
		Allocation:      ev.Allocation,
		PreStateVersion: ev.PreState.Version,
	}
	if !ev.LiquidityLockedUntil.IsZero() {
		until := ev.LiquidityLockedUntil
		data.LiquidityLockedUntil = &until
	}
	return envelope{
		Type:      string(events.TokenGraduated),
		Mint:      ev.Mint.String(),
		Timestamp: ev.CreatedAt,
		Data:      data,
	}, ev.IdempotencyKey
}

// eventMessage maps a bus event onto an envelope. ok is false for events
// that are not forwarded (graduations go through NotifyGraduated).
func eventMessage(e events.Event) (env envelope, msgID string, ok bool) {
	env = envelope{Type: string(e.Type()), Timestamp: e.Timestamp()}

	switch ev := e.(type) {
	case events.TokenCreatedEvent:
		env.Mint = ev.Mint.String()
		env.Data = createdData{Creator: ev.Creator.String()}
		return env, "created:" + env.Mint, true
	case events.TradeAppliedEvent:
		env.Mint = ev.Mint.String()
		env.Data = tradeData{
			Trader:      ev.Trader.String(),
			Side:        ev.Side,
			SolAmount:   ev.SolAmount,
			TokenAmount: ev.TokenAmount,
			PlatformFee: ev.PlatformFee,
			Signature:   ev.Signature.String(),
			Version:     ev.Version,
			Price:       ev.Price.String(),
		}
		return env, fmt.Sprintf("trade:%s:%d", env.Mint, ev.Version), true
	case events.TradeFailedEvent:
		env.Mint = ev.Mint.String()
		env.Data = failureData{Trader: ev.Trader.String(), Side: ev.Side, Error: errString(ev.Error)}
		return env, "", true
	case events.GraduationFailedEvent:
		env.Mint = ev.Mint.String()
		env.Data = failureData{Retryable: ev.Retryable, Error: errString(ev.Error)}
		return env, "", true
	case events.FundsWithdrawnEvent:
		env.Mint = ev.Mint.String()
		env.Data = withdrawalData{Creator: ev.Creator.String(), Amount: ev.Amount, Remaining: ev.Remaining}
		return env, "", true
	default:
		return envelope{}, "", false
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
