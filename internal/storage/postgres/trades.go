// internal/storage/postgres/trades.go
package postgres

import (
	"context"
	"fmt"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
)

var _ storage.TradeStore = (*Store)(nil)

// InsertTrade appends an applied trade. The (mint, version) pair is unique.
func (s *Store) InsertTrade(ctx context.Context, rec storage.TradeRecord) error {
	if rec.Version == 0 {
		return fmt.Errorf("%w: trade requires a state version", storage.ErrInvalidInput)
	}
	row := models.Trade{
		Mint:        rec.Mint.String(),
		Version:     int64(rec.Version),
		Trader:      rec.Trader.String(),
		Side:        string(rec.Side),
		SolAmount:   toNumeric(rec.SolAmount),
		TokenAmount: toNumeric(rec.TokenAmount),
		PlatformFee: toNumeric(rec.PlatformFee),
		Signature:   rec.Signature.String(),
		ExecutedAt:  rec.ExecutedAt,
	}
	return translate(s.db.WithContext(ctx).Create(&row).Error)
}

// ListTrades returns every trade, oldest first.
func (s *Store) ListTrades(ctx context.Context) ([]storage.TradeRecord, error) {
	var rows []models.Trade
	if err := s.db.WithContext(ctx).Order("executed_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}

	out := make([]storage.TradeRecord, 0, len(rows))
	for _, row := range rows {
		mint, err := parseKey(row.Mint)
		if err != nil {
			return nil, fmt.Errorf("decode mint of trade %d: %w", row.ID, err)
		}
		trader, err := parseKey(row.Trader)
		if err != nil {
			return nil, fmt.Errorf("decode trader of trade %d: %w", row.ID, err)
		}
		sig, err := parseSignature(row.Signature)
		if err != nil {
			return nil, fmt.Errorf("decode signature of trade %d: %w", row.ID, err)
		}
		var d numDecoder
		rec := storage.TradeRecord{
			Mint:        mint,
			Trader:      trader,
			Side:        curve.Side(row.Side),
			SolAmount:   d.u64(row.SolAmount),
			TokenAmount: d.u64(row.TokenAmount),
			PlatformFee: d.u64(row.PlatformFee),
			Signature:   sig,
			Version:     uint64(row.Version),
			ExecutedAt:  row.ExecutedAt.UTC(),
		}
		if d.err != nil {
			return nil, fmt.Errorf("decode trade %d: %w", row.ID, d.err)
		}
		out = append(out, rec)
	}
	return out, nil
}
