// internal/storage/postgres/withdrawals.go
package postgres

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchpad/internal/fund"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
)

var _ fund.Store = (*Store)(nil)

// InsertWithdrawal appends a withdrawal record.
func (s *Store) InsertWithdrawal(ctx context.Context, w *fund.Withdrawal) error {
	if w == nil || w.ID == "" || w.Amount == 0 {
		return fmt.Errorf("%w: withdrawal requires an id and a positive amount", storage.ErrInvalidInput)
	}
	row := models.Withdrawal{
		ID:        w.ID,
		Mint:      w.Mint.String(),
		Creator:   w.Creator.String(),
		Amount:    toNumeric(w.Amount),
		Remaining: toNumeric(w.Remaining),
		CreatedAt: w.CreatedAt,
	}
	return translate(s.db.WithContext(ctx).Create(&row).Error)
}

// ListWithdrawals returns the withdrawals of a mint, oldest first.
func (s *Store) ListWithdrawals(ctx context.Context, mint solana.PublicKey) ([]*fund.Withdrawal, error) {
	var rows []models.Withdrawal
	err := s.db.WithContext(ctx).
		Where("mint = ?", mint.String()).
		Order("created_at asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}

	out := make([]*fund.Withdrawal, 0, len(rows))
	for _, row := range rows {
		creator, err := parseKey(row.Creator)
		if err != nil {
			return nil, fmt.Errorf("decode creator of withdrawal %s: %w", row.ID, err)
		}
		var d numDecoder
		w := &fund.Withdrawal{
			ID:        row.ID,
			Mint:      mint,
			Creator:   creator,
			Amount:    d.u64(row.Amount),
			Remaining: d.u64(row.Remaining),
			CreatedAt: row.CreatedAt.UTC(),
		}
		if d.err != nil {
			return nil, fmt.Errorf("decode withdrawal %s: %w", row.ID, d.err)
		}
		out = append(out, w)
	}
	return out, nil
}
