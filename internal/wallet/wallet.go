// internal/wallet/wallet.go
package wallet

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// AssociatedTokenProgramID - программа ассоциированных токен-аккаунтов
var AssociatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

const createIdempotent byte = 1

// Wallet - плательщик бумажных транзакций: подписывает settlement и создание пулов.
type Wallet struct {
	key     solana.PrivateKey
	address solana.PublicKey

	mu       sync.Mutex
	accounts map[solana.PublicKey]solana.PublicKey // mint -> ATA
}

// Load parses a base58-encoded 64-byte ed25519 secret key.
func Load(secret string) (*Wallet, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("decode payer key: %w", err)
	}
	if len(raw) != 64 {
		return nil, fmt.Errorf("payer key must be 64 bytes, got %d", len(raw))
	}
	return newWallet(solana.PrivateKey(raw)), nil
}

// Ephemeral creates a wallet with a random key that lives only in memory.
func Ephemeral() *Wallet {
	return newWallet(solana.NewWallet().PrivateKey)
}

func newWallet(key solana.PrivateKey) *Wallet {
	return &Wallet{
		key:      key,
		address:  key.PublicKey(),
		accounts: make(map[solana.PublicKey]solana.PublicKey),
	}
}

func (w *Wallet) Address() solana.PublicKey { return w.address }

func (w *Wallet) String() string { return w.address.String() }

// Sign собирает транзакцию с кошельком в роли fee payer и подписывает ее.
func (w *Wallet) Sign(blockhash solana.Hash, ixs ...solana.Instruction) (*solana.Transaction, error) {
	if len(ixs) == 0 {
		return nil, errors.New("no instructions to sign")
	}
	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(w.address))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	if _, err := tx.Sign(func(signer solana.PublicKey) *solana.PrivateKey {
		if signer.Equals(w.address) {
			return &w.key
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return tx, nil
}

// TokenAccount returns the wallet's associated token account for mint.
func (w *Wallet) TokenAccount(mint solana.PublicKey) (solana.PublicKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ata, ok := w.accounts[mint]; ok {
		return ata, nil
	}
	ata, _, err := solana.FindAssociatedTokenAddress(w.address, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive token account for %s: %w", mint, err)
	}
	w.accounts[mint] = ata
	return ata, nil
}

// OpenTokenAccount returns an idempotent create-ATA instruction and the account it opens.
func (w *Wallet) OpenTokenAccount(mint solana.PublicKey) (solana.Instruction, solana.PublicKey, error) {
	ata, err := w.TokenAccount(mint)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	ix := solana.NewInstruction(
		AssociatedTokenProgramID,
		solana.AccountMetaSlice{
			solana.Meta(w.address).WRITE().SIGNER(),
			solana.Meta(ata).WRITE(),
			solana.Meta(w.address),
			solana.Meta(mint),
			solana.Meta(solana.SystemProgramID),
			solana.Meta(solana.TokenProgramID),
		},
		[]byte{createIdempotent},
	)
	return ix, ata, nil
}
