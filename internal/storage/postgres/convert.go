// internal/storage/postgres/convert.go
package postgres

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rovshanmuradov/launchpad/internal/storage"
)

// uniqueViolation - SQLSTATE нарушения уникального ключа
const uniqueViolation = "23505"

func toNumeric(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func fromNumeric(d decimal.Decimal) (uint64, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("negative amount %s", d)
	}
	v := d.Truncate(0).BigInt()
	if !v.IsUint64() {
		return 0, fmt.Errorf("amount %s overflows uint64", d)
	}
	return v.Uint64(), nil
}

// numDecoder decodes numeric columns and keeps the first error.
type numDecoder struct {
	err error
}

func (d *numDecoder) u64(v decimal.Decimal) uint64 {
	if d.err != nil {
		return 0
	}
	x, err := fromNumeric(v)
	if err != nil {
		d.err = err
	}
	return x
}

func parseKey(s string) (solana.PublicKey, error) {
	if s == "" {
		return solana.PublicKey{}, nil
	}
	return solana.PublicKeyFromBase58(s)
}

func parseSignature(s string) (solana.Signature, error) {
	if s == "" {
		return solana.Signature{}, nil
	}
	return solana.SignatureFromBase58(s)
}

// translate maps driver errors onto the storage taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", storage.ErrDuplicateKey, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, pgErr.ConstraintName)
	}
	return err
}
