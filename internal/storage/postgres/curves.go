// internal/storage/postgres/curves.go
package postgres

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
)

var _ storage.CurveStore = (*Store)(nil)

// CreateCurve inserts a new curve row.
func (s *Store) CreateCurve(ctx context.Context, rec storage.CurveRecord) error {
	if rec.Mint.IsZero() {
		return fmt.Errorf("%w: mint is required", storage.ErrInvalidInput)
	}
	row := curveRow(rec)
	return translate(s.db.WithContext(ctx).Create(&row).Error)
}

// GetCurve loads one curve by mint.
func (s *Store) GetCurve(ctx context.Context, mint solana.PublicKey) (storage.CurveRecord, error) {
	var row models.Curve
	if err := s.db.WithContext(ctx).Where("mint = ?", mint.String()).First(&row).Error; err != nil {
		return storage.CurveRecord{}, translate(err)
	}
	return curveRecord(row)
}

// ListCurves returns all curves ordered by creation time.
func (s *Store) ListCurves(ctx context.Context) ([]storage.CurveRecord, error) {
	var rows []models.Curve
	if err := s.db.WithContext(ctx).Order("created_at asc, mint asc").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]storage.CurveRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := curveRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// SaveState обновляет резервы, только если версия в базе равна expectedVersion.
func (s *Store) SaveState(ctx context.Context, mint solana.PublicKey, state curve.State, expectedVersion uint64) error {
	res := s.db.WithContext(ctx).Model(&models.Curve{}).
		Where("mint = ? AND version = ?", mint.String(), int64(expectedVersion)).
		Updates(map[string]interface{}{
			"real_sol_reserves":   toNumeric(state.RealSolReserves),
			"real_token_reserves": toNumeric(state.RealTokenReserves),
			"version":             int64(state.Version),
			"graduated":           state.Graduated,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Curve{}).Where("mint = ?", mint.String()).Count(&count).Error; err != nil {
		return translate(err)
	}
	if count == 0 {
		return storage.ErrNotFound
	}
	return storage.ErrVersionConflict
}

func curveRow(rec storage.CurveRecord) models.Curve {
	return models.Curve{
		Mint:                 rec.Mint.String(),
		Creator:              rec.Creator.String(),
		Name:                 rec.Name,
		Symbol:               rec.Symbol,
		VirtualSolReserves:   toNumeric(rec.Config.VirtualSolReserves),
		VirtualTokenReserves: toNumeric(rec.Config.VirtualTokenReserves),
		TotalSupply:          toNumeric(rec.Config.TotalSupply),
		PlatformFeePercent:   rec.Config.PlatformFeePercent,
		MaxMarketCap:         rec.Config.MaxMarketCap,
		RealSolReserves:      toNumeric(rec.State.RealSolReserves),
		RealTokenReserves:    toNumeric(rec.State.RealTokenReserves),
		Version:              int64(rec.State.Version),
		Graduated:            rec.State.Graduated,
		CreatedAt:            rec.CreatedAt,
	}
}

func curveRecord(row models.Curve) (storage.CurveRecord, error) {
	mint, err := parseKey(row.Mint)
	if err != nil {
		return storage.CurveRecord{}, fmt.Errorf("decode mint %q: %w", row.Mint, err)
	}
	creator, err := parseKey(row.Creator)
	if err != nil {
		return storage.CurveRecord{}, fmt.Errorf("decode creator of %s: %w", row.Mint, err)
	}

	var d numDecoder
	rec := storage.CurveRecord{
		Mint:    mint,
		Creator: creator,
		Name:    row.Name,
		Symbol:  row.Symbol,
		Config: curve.Config{
			VirtualSolReserves:   d.u64(row.VirtualSolReserves),
			VirtualTokenReserves: d.u64(row.VirtualTokenReserves),
			TotalSupply:          d.u64(row.TotalSupply),
			PlatformFeePercent:   row.PlatformFeePercent,
			MaxMarketCap:         row.MaxMarketCap,
		},
		State: curve.State{
			RealSolReserves:   d.u64(row.RealSolReserves),
			RealTokenReserves: d.u64(row.RealTokenReserves),
			Version:           uint64(row.Version),
			Graduated:         row.Graduated,
		},
		CreatedAt: row.CreatedAt.UTC(),
	}
	if d.err != nil {
		return storage.CurveRecord{}, fmt.Errorf("decode curve %s: %w", row.Mint, d.err)
	}
	return rec, nil
}
