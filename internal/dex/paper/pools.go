// internal/dex/paper/pools.go
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/graduation"
	"github.com/rovshanmuradov/launchpad/internal/wallet"
)

// PoolCreator создает пулы "на бумаге": транзакция собирается и подписывается,
// но не отправляется. Повтор с тем же ключом идемпотентности возвращает прежний пул.
type PoolCreator struct {
	payer   *wallet.Wallet
	latency time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	pools map[string]graduation.PoolResult
	mints map[solana.PublicKey]string
}

var _ graduation.PoolCreator = (*PoolCreator)(nil)

// NewPoolCreator creates a paper pool creator. latency simulates confirmation time.
func NewPoolCreator(payer *wallet.Wallet, latency time.Duration, logger *zap.Logger) *PoolCreator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolCreator{
		payer:   payer,
		latency: latency,
		logger:  logger.Named("paper_pools"),
		pools:   make(map[string]graduation.PoolResult),
		mints:   make(map[solana.PublicKey]string),
	}
}

// CreatePool implements graduation.PoolCreator.
func (p *PoolCreator) CreatePool(ctx context.Context, req graduation.PoolRequest) (graduation.PoolResult, error) {
	if req.IdempotencyKey == "" {
		return graduation.PoolResult{}, fmt.Errorf("%w: idempotency key is required", curve.ErrInvalidAmount)
	}
	if req.SolAmount == 0 || req.TokenAmount == 0 {
		return graduation.PoolResult{}, fmt.Errorf("%w: pool needs both sides of liquidity", curve.ErrInvalidAmount)
	}

	p.mu.Lock()
	if res, ok := p.pools[req.IdempotencyKey]; ok {
		p.mu.Unlock()
		p.logger.Debug("Pool already created for key", zap.String("key", req.IdempotencyKey))
		return res, nil
	}
	if key, ok := p.mints[req.Mint]; ok {
		p.mu.Unlock()
		return graduation.PoolResult{}, fmt.Errorf("pool for %s already created under key %s", req.Mint, key)
	}
	p.mu.Unlock()

	if err := sleep(ctx, p.latency); err != nil {
		return graduation.PoolResult{}, err
	}

	pool, err := DerivePoolAddress(req.Mint)
	if err != nil {
		return graduation.PoolResult{}, err
	}
	// токены для пула поступают со счета плательщика
	openATA, payerATA, err := p.payer.OpenTokenAccount(req.Mint)
	if err != nil {
		return graduation.PoolResult{}, err
	}
	ix := solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.Meta(pool).WRITE(),
		solana.Meta(req.Mint),
		solana.Meta(solana.SolMint),
		solana.Meta(payerATA).WRITE(),
		solana.Meta(p.payer.Address()).WRITE().SIGNER(),
	}, instructionData(createPoolDiscriminator, req.TokenAmount, req.SolAmount))

	sig, err := signOffline(p.payer, []byte(req.IdempotencyKey), openATA, ix)
	if err != nil {
		return graduation.PoolResult{}, err
	}
	res := graduation.PoolResult{PoolID: pool, Signature: sig}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.pools[req.IdempotencyKey]; ok {
		return existing, nil
	}
	p.pools[req.IdempotencyKey] = res
	p.mints[req.Mint] = req.IdempotencyKey

	p.logger.Info("Paper pool created",
		zap.String("mint", req.Mint.String()),
		zap.String("pool", pool.String()),
		zap.Uint64("sol_amount", req.SolAmount),
		zap.Uint64("token_amount", req.TokenAmount),
		zap.String("signature", sig.String()))
	return res, nil
}

// Pools returns how many pools were created.
func (p *PoolCreator) Pools() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pools)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
