// internal/launchpad/registry.go
package launchpad

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

// TokenParams описывает новый токен. Нулевой Mint генерируется автоматически,
// нулевой Config заменяется конфигурацией по умолчанию реестра.
type TokenParams struct {
	Mint    solana.PublicKey
	Creator solana.PublicKey
	Name    string
	Symbol  string
	Config  *curve.Config
}

// TokenInfo is the registry view of a token.
type TokenInfo struct {
	Mint      solana.PublicKey
	Creator   solana.PublicKey
	Name      string
	Symbol    string
	CreatedAt time.Time
	Snapshot  curve.Snapshot
}

type entry struct {
	engine    *curve.Engine
	creator   solana.PublicKey
	name      string
	symbol    string
	createdAt time.Time

	saveMu       sync.Mutex
	savedVersion uint64
}

// Registry owns the engines of all tokens and their persistence.
type Registry struct {
	store     storage.CurveStore
	defaults  curve.Config
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.RWMutex
	tokens map[solana.PublicKey]*entry
}

// NewRegistry creates a registry backed by store. publisher may be nil.
func NewRegistry(store storage.CurveStore, defaults curve.Config, publisher events.Publisher, logger *zap.Logger) (*Registry, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:     store,
		defaults:  defaults,
		publisher: publisher,
		logger:    logger.Named("registry"),
		now:       time.Now,
		tokens:    make(map[solana.PublicKey]*entry),
	}, nil
}

// CreateToken registers a new curve, persists it and emits TokenCreated.
func (r *Registry) CreateToken(ctx context.Context, params TokenParams) (*curve.Engine, error) {
	if params.Creator.IsZero() {
		return nil, fmt.Errorf("%w: creator is required", storage.ErrInvalidInput)
	}
	mint := params.Mint
	if mint.IsZero() {
		mint = solana.NewWallet().PublicKey()
	}
	cfg := r.defaults
	if params.Config != nil {
		cfg = *params.Config
	}

	engine, err := curve.NewEngine(mint, cfg, r.logger)
	if err != nil {
		return nil, err
	}

	createdAt := r.now().UTC()
	rec := storage.CurveRecord{
		Mint:      mint,
		Creator:   params.Creator,
		Name:      strings.TrimSpace(params.Name),
		Symbol:    strings.ToUpper(strings.TrimSpace(params.Symbol)),
		Config:    cfg,
		State:     engine.Snapshot().State,
		CreatedAt: createdAt,
	}

	r.mu.Lock()
	if _, exists := r.tokens[mint]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("token %s: %w", mint, storage.ErrDuplicateKey)
	}
	if err := r.store.CreateCurve(ctx, rec); err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("create curve %s: %w", mint, err)
	}
	r.tokens[mint] = &entry{
		engine:    engine,
		creator:   rec.Creator,
		name:      rec.Name,
		symbol:    rec.Symbol,
		createdAt: createdAt,
	}
	r.mu.Unlock()

	r.logger.Info("Token created",
		zap.String("mint", mint.String()),
		zap.String("creator", rec.Creator.String()),
		zap.String("symbol", rec.Symbol))

	if r.publisher != nil {
		if err := r.publisher.Publish(events.TokenCreatedEvent{
			BaseEvent: events.NewBase(events.TokenCreated, createdAt),
			Mint:      mint,
			Creator:   rec.Creator,
		}); err != nil {
			r.logger.Warn("Failed to publish token created event", zap.Error(err))
		}
	}
	return engine, nil
}

// Engine returns the engine of a mint or storage.ErrNotFound.
func (r *Registry) Engine(mint solana.PublicKey) (*curve.Engine, error) {
	e, err := r.entry(mint)
	if err != nil {
		return nil, err
	}
	return e.engine, nil
}

// Creator returns the creator of a mint.
func (r *Registry) Creator(mint solana.PublicKey) (solana.PublicKey, error) {
	e, err := r.entry(mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return e.creator, nil
}

// CreatedAt returns when the token was registered.
func (r *Registry) CreatedAt(mint solana.PublicKey) (time.Time, error) {
	e, err := r.entry(mint)
	if err != nil {
		return time.Time{}, err
	}
	return e.createdAt, nil
}

// Info returns the token metadata with a fresh curve snapshot.
func (r *Registry) Info(mint solana.PublicKey) (TokenInfo, error) {
	e, err := r.entry(mint)
	if err != nil {
		return TokenInfo{}, err
	}
	return TokenInfo{
		Mint:      mint,
		Creator:   e.creator,
		Name:      e.name,
		Symbol:    e.symbol,
		CreatedAt: e.createdAt,
		Snapshot:  e.engine.Snapshot(),
	}, nil
}

// Mints returns registered mints ordered by creation time.
func (r *Registry) Mints() []solana.PublicKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type item struct {
		mint solana.PublicKey
		at   time.Time
	}
	items := make([]item, 0, len(r.tokens))
	for mint, e := range r.tokens {
		items = append(items, item{mint: mint, at: e.createdAt})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].at.Equal(items[j].at) {
			return items[i].mint.String() < items[j].mint.String()
		}
		return items[i].at.Before(items[j].at)
	})
	mints := make([]solana.PublicKey, len(items))
	for i, it := range items {
		mints[i] = it.mint
	}
	return mints
}

// Load восстанавливает движки из хранилища. Уже зарегистрированные mint пропускаются.
func (r *Registry) Load(ctx context.Context) (int, error) {
	records, err := r.store.ListCurves(ctx)
	if err != nil {
		return 0, fmt.Errorf("list curves: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	loaded := 0
	for _, rec := range records {
		if _, exists := r.tokens[rec.Mint]; exists {
			continue
		}
		engine, err := curve.NewEngine(rec.Mint, rec.Config, r.logger)
		if err != nil {
			return loaded, fmt.Errorf("restore curve %s: %w", rec.Mint, err)
		}
		if err := engine.Restore(rec.State); err != nil {
			return loaded, fmt.Errorf("restore curve %s: %w", rec.Mint, err)
		}
		r.tokens[rec.Mint] = &entry{
			engine:       engine,
			creator:      rec.Creator,
			name:         rec.Name,
			symbol:       rec.Symbol,
			createdAt:    rec.CreatedAt,
			savedVersion: rec.State.Version,
		}
		loaded++
	}

	r.logger.Info("Curves loaded from store", zap.Int("loaded", loaded), zap.Int("total", len(r.tokens)))
	return loaded, nil
}

// Save persists the current engine state with optimistic versioning.
func (r *Registry) Save(ctx context.Context, mint solana.PublicKey) error {
	e, err := r.entry(mint)
	if err != nil {
		return err
	}

	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	snap := e.engine.Snapshot()
	if snap.State.Version == e.savedVersion {
		return nil
	}
	if err := r.store.SaveState(ctx, mint, snap.State, e.savedVersion); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			r.logger.Error("Curve state changed by another writer",
				zap.String("mint", mint.String()),
				zap.Uint64("expected_version", e.savedVersion),
				zap.Uint64("engine_version", snap.State.Version))
		}
		return fmt.Errorf("save curve %s: %w", mint, err)
	}
	e.savedVersion = snap.State.Version
	return nil
}

func (r *Registry) entry(mint solana.PublicKey) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tokens[mint]
	if !ok {
		return nil, fmt.Errorf("token %s: %w", mint, storage.ErrNotFound)
	}
	return e, nil
}
