// internal/storage/redis/cache.go
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	goredis "github.com/redis/go-redis/v9"

	"github.com/rovshanmuradov/launchpad/internal/graduation"
)

// ErrDisabled indicates the cache layer is disabled via configuration.
var ErrDisabled = errors.New("redis cache disabled")

// Config represents Redis client configuration options.
type Config struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// StatusCache хранит статусы graduation в Redis как JSON с TTL.
// Реализует graduation.Cache; отключенный кэш всегда возвращает промах.
type StatusCache struct {
	client *goredis.Client
	cfg    Config
}

var _ graduation.Cache = (*StatusCache)(nil)

// New creates a new StatusCache from the provided configuration.
func New(cfg Config) (*StatusCache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = graduation.DefaultCacheTTL
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "launchpad"
	}
	if !cfg.Enabled {
		return &StatusCache{cfg: cfg}, nil
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required when cache is enabled")
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &StatusCache{client: client, cfg: cfg}, nil
}

// Ping checks connectivity. A disabled cache returns ErrDisabled.
func (c *StatusCache) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrDisabled
	}
	return c.client.Ping(ctx).Err()
}

func (c *StatusCache) key(mint solana.PublicKey) string {
	return fmt.Sprintf("%s:graduation:%s", c.cfg.KeyPrefix, mint)
}

// Get retrieves a cached status.
func (c *StatusCache) Get(ctx context.Context, mint solana.PublicKey) (graduation.Status, error) {
	if c == nil || c.client == nil {
		return graduation.Status{}, graduation.ErrCacheMiss
	}

	payload, err := c.client.Get(ctx, c.key(mint)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return graduation.Status{}, graduation.ErrCacheMiss
	}
	if err != nil {
		return graduation.Status{}, fmt.Errorf("redis get: %w", err)
	}

	var st graduation.Status
	if err := json.Unmarshal(payload, &st); err != nil {
		return graduation.Status{}, fmt.Errorf("decode cached status: %w", err)
	}
	return st, nil
}

// Set stores a status for the configured TTL.
func (c *StatusCache) Set(ctx context.Context, st graduation.Status) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(st.Mint), payload, c.cfg.TTL).Err()
}

// Invalidate drops the cached status of a mint.
func (c *StatusCache) Invalidate(ctx context.Context, mint solana.PublicKey) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.key(mint)).Err()
}

// Close releases the client.
func (c *StatusCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
