// internal/dex/paper/settlement.go
package paper

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/trading"
	"github.com/rovshanmuradov/launchpad/internal/wallet"
)

// Settlement подтверждает сделки без сети: строит инструкцию buy/sell
// для PDA кривой, подписывает ее ключом плательщика и выдает квитанцию.
// Балансы трейдеров ведутся в памяти, как на ассоциированных токен-аккаунтах:
// продажа сверх баланса отклоняется.
type Settlement struct {
	payer   *wallet.Wallet
	latency time.Duration
	slot    atomic.Uint64
	logger  *zap.Logger

	mu       sync.Mutex
	holdings map[holding]uint64
}

type holding struct {
	mint   solana.PublicKey
	trader solana.PublicKey
}

var _ trading.Settlement = (*Settlement)(nil)

// NewSettlement creates a paper settlement backend.
func NewSettlement(payer *wallet.Wallet, latency time.Duration, logger *zap.Logger) *Settlement {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Settlement{
		payer:    payer,
		latency:  latency,
		logger:   logger.Named("paper_settlement"),
		holdings: make(map[holding]uint64),
	}
	s.slot.Store(1)
	return s
}

// Submit implements trading.Settlement.
func (s *Settlement) Submit(ctx context.Context, req trading.SettlementRequest) (trading.Receipt, error) {
	q := req.Quote
	if q == nil {
		return trading.Receipt{}, fmt.Errorf("%w: nil quote", curve.ErrInvalidAmount)
	}

	var discriminator []byte
	switch q.Side {
	case curve.SideBuy:
		discriminator = buyDiscriminator
	case curve.SideSell:
		discriminator = sellDiscriminator
	default:
		return trading.Receipt{}, fmt.Errorf("%w: unknown side %q", curve.ErrInvalidAmount, q.Side)
	}

	key := holding{mint: q.Mint, trader: req.Trader}
	if q.Side == curve.SideSell {
		if err := s.debit(key, q.InputAmount); err != nil {
			return trading.Receipt{}, err
		}
	}
	receipt, err := s.confirm(ctx, req.Trader, q, discriminator)
	if err != nil {
		if q.Side == curve.SideSell {
			s.credit(key, q.InputAmount)
		}
		return trading.Receipt{}, err
	}
	if q.Side == curve.SideBuy {
		s.credit(key, q.OutputAmount)
	}
	return receipt, nil
}

// Balance returns the paper token balance of a trader.
func (s *Settlement) Balance(mint, trader solana.PublicKey) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holdings[holding{mint: mint, trader: trader}]
}

// Replay восстанавливает балансы по журналу сделок после рестарта.
func (s *Settlement) Replay(trades []storage.TradeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range trades {
		key := holding{mint: t.Mint, trader: t.Trader}
		switch t.Side {
		case curve.SideBuy:
			s.holdings[key] += t.TokenAmount
		case curve.SideSell:
			if left := subClamp(s.holdings[key], t.TokenAmount); left > 0 {
				s.holdings[key] = left
			} else {
				delete(s.holdings, key)
			}
		}
	}
	s.logger.Info("Paper balances restored", zap.Int("trades", len(trades)), zap.Int("holdings", len(s.holdings)))
}

func (s *Settlement) debit(key holding, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bal := s.holdings[key]
	if amount > bal {
		return fmt.Errorf("%w: selling %d, holding %d", trading.ErrInsufficientBalance, amount, bal)
	}
	if amount == bal {
		delete(s.holdings, key)
	} else {
		s.holdings[key] = bal - amount
	}
	return nil
}

func (s *Settlement) credit(key holding, amount uint64) {
	s.mu.Lock()
	s.holdings[key] += amount
	s.mu.Unlock()
}

func (s *Settlement) confirm(ctx context.Context, trader solana.PublicKey, q *curve.TradeQuote, discriminator []byte) (trading.Receipt, error) {
	if err := sleep(ctx, s.latency); err != nil {
		return trading.Receipt{}, err
	}

	bondingCurve, err := DeriveBondingCurveAddress(q.Mint)
	if err != nil {
		return trading.Receipt{}, err
	}
	ix := solana.NewInstruction(CurveProgramID, solana.AccountMetaSlice{
		solana.Meta(bondingCurve).WRITE(),
		solana.Meta(q.Mint),
		solana.Meta(trader).WRITE(),
		solana.Meta(s.payer.Address()).WRITE().SIGNER(),
	}, instructionData(discriminator, q.InputAmount, q.OutputAmount))

	id := uuid.New()
	sig, err := signOffline(s.payer, id[:], ix)
	if err != nil {
		return trading.Receipt{}, err
	}

	receipt := trading.Receipt{
		Signature:   sig,
		Slot:        s.slot.Add(1),
		ConfirmedAt: time.Now().UTC(),
	}
	s.logger.Debug("Paper trade confirmed",
		zap.String("mint", q.Mint.String()),
		zap.String("side", string(q.Side)),
		zap.Uint64("slot", receipt.Slot),
		zap.String("signature", sig.String()))
	return receipt, nil
}

func subClamp(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
