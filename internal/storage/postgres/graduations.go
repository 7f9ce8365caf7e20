// internal/storage/postgres/graduations.go
package postgres

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/graduation"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
)

var _ graduation.EventStore = (*Store)(nil)

// InsertGraduation записывает событие выпуска. Уникальные индексы по mint и
// ключу идемпотентности гарантируют не более одного события на токен.
func (s *Store) InsertGraduation(ctx context.Context, ev *graduation.Event) error {
	if ev == nil || ev.Mint.IsZero() {
		return fmt.Errorf("%w: graduation event requires a mint", storage.ErrInvalidInput)
	}
	row := graduationRow(ev)
	return translate(s.db.WithContext(ctx).Create(&row).Error)
}

// GetGraduation returns the event of a mint or storage.ErrNotFound.
func (s *Store) GetGraduation(ctx context.Context, mint solana.PublicKey) (*graduation.Event, error) {
	var row models.GraduationEvent
	if err := s.db.WithContext(ctx).Where("mint = ?", mint.String()).First(&row).Error; err != nil {
		return nil, translate(err)
	}
	return graduationEvent(row)
}

// ListGraduations returns all events in graduation order.
func (s *Store) ListGraduations(ctx context.Context) ([]*graduation.Event, error) {
	var rows []models.GraduationEvent
	if err := s.db.WithContext(ctx).Order("graduated_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*graduation.Event, 0, len(rows))
	for _, row := range rows {
		ev, err := graduationEvent(row)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func graduationRow(ev *graduation.Event) models.GraduationEvent {
	row := models.GraduationEvent{
		Mint:               ev.Mint.String(),
		IdempotencyKey:     ev.IdempotencyKey,
		PoolID:             ev.PoolID.String(),
		Signature:          ev.Signature.String(),
		PreRealSol:         toNumeric(ev.PreState.RealSolReserves),
		PreRealToken:       toNumeric(ev.PreState.RealTokenReserves),
		PreVersion:         int64(ev.PreState.Version),
		PostRealSol:        toNumeric(ev.PostState.RealSolReserves),
		PostRealToken:      toNumeric(ev.PostState.RealTokenReserves),
		PostVersion:        int64(ev.PostState.Version),
		PostGraduated:      ev.PostState.Graduated,
		SolForLiquidity:    toNumeric(ev.Allocation.SolForLiquidity),
		TokensForLiquidity: toNumeric(ev.Allocation.TokensForLiquidity),
		RemainingSol:       toNumeric(ev.Allocation.RemainingSol),
		RemainingTokens:    toNumeric(ev.Allocation.RemainingTokens),
		GraduationFee:      toNumeric(ev.Allocation.GraduationFee),
		GraduatedAt:        ev.CreatedAt,
	}
	if !ev.LiquidityLockedUntil.IsZero() {
		until := ev.LiquidityLockedUntil
		row.LiquidityLockedUntil = &until
	}
	return row
}

func graduationEvent(row models.GraduationEvent) (*graduation.Event, error) {
	mint, err := parseKey(row.Mint)
	if err != nil {
		return nil, fmt.Errorf("decode mint %q: %w", row.Mint, err)
	}
	pool, err := parseKey(row.PoolID)
	if err != nil {
		return nil, fmt.Errorf("decode pool of %s: %w", row.Mint, err)
	}
	sig, err := parseSignature(row.Signature)
	if err != nil {
		return nil, fmt.Errorf("decode signature of %s: %w", row.Mint, err)
	}

	var d numDecoder
	ev := &graduation.Event{
		Mint: mint,
		PreState: curve.State{
			RealSolReserves:   d.u64(row.PreRealSol),
			RealTokenReserves: d.u64(row.PreRealToken),
			Version:           uint64(row.PreVersion),
		},
		PostState: curve.State{
			RealSolReserves:   d.u64(row.PostRealSol),
			RealTokenReserves: d.u64(row.PostRealToken),
			Version:           uint64(row.PostVersion),
			Graduated:         row.PostGraduated,
		},
		Allocation: graduation.Allocation{
			SolForLiquidity:    d.u64(row.SolForLiquidity),
			TokensForLiquidity: d.u64(row.TokensForLiquidity),
			RemainingSol:       d.u64(row.RemainingSol),
			RemainingTokens:    d.u64(row.RemainingTokens),
			GraduationFee:      d.u64(row.GraduationFee),
		},
		PoolID:         pool,
		Signature:      sig,
		IdempotencyKey: row.IdempotencyKey,
		CreatedAt:      row.GraduatedAt.UTC(),
	}
	if row.LiquidityLockedUntil != nil {
		ev.LiquidityLockedUntil = row.LiquidityLockedUntil.UTC()
	}
	if d.err != nil {
		return nil, fmt.Errorf("decode graduation %s: %w", row.Mint, d.err)
	}
	return ev, nil
}
