// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/graduation"
	"github.com/rovshanmuradov/launchpad/internal/notify"
	"github.com/rovshanmuradov/launchpad/internal/storage/redis"
	"github.com/rovshanmuradov/launchpad/internal/trading"
	"github.com/rovshanmuradov/launchpad/internal/utils/logger"
)

// EnvPrefix - префикс переменных окружения (LAUNCHPAD_CURVE_PLATFORM_FEE_PERCENT и т.д.)
const EnvPrefix = "LAUNCHPAD"

type Config struct {
	Curve        CurveConfig        `mapstructure:"curve"`
	Graduation   GraduationConfig   `mapstructure:"graduation"`
	Allocation   AllocationConfig   `mapstructure:"allocation"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Trading      TradingConfig      `mapstructure:"trading"`
	Postgres     PostgresConfig     `mapstructure:"postgres"`
	Redis        redis.Config       `mapstructure:"redis"`
	NATS         NATSConfig         `mapstructure:"nats"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Paper        PaperConfig        `mapstructure:"paper"`
	Log          logger.Config      `mapstructure:"log"`
}

// CurveConfig задает кривую в человеческих единицах (SOL и целые токены).
type CurveConfig struct {
	VirtualSolReserves   decimal.Decimal `mapstructure:"virtual_sol_reserves"`
	VirtualTokenReserves decimal.Decimal `mapstructure:"virtual_token_reserves"`
	PlatformFeePercent   decimal.Decimal `mapstructure:"platform_fee_percent"`
	MaxMarketCap         decimal.Decimal `mapstructure:"max_market_cap"`
	TotalSupply          decimal.Decimal `mapstructure:"total_supply"`
}

type GraduationConfig struct {
	MinimumMarketCap      decimal.Decimal `mapstructure:"minimum_market_cap"`
	MinimumLiquidity      decimal.Decimal `mapstructure:"minimum_liquidity"` // SOL
	MinimumHolders        int             `mapstructure:"minimum_holders"`
	MinimumVolume24h      decimal.Decimal `mapstructure:"minimum_volume_24h"` // SOL
	MinimumAge            time.Duration   `mapstructure:"minimum_age"`
	GraduationFeePercent  decimal.Decimal `mapstructure:"graduation_fee_percent"`
	LiquidityLockDays     int             `mapstructure:"liquidity_lock_days"`
	MarketCapDenomination string          `mapstructure:"market_cap_denomination"`
	CacheTTL              time.Duration   `mapstructure:"cache_ttl"`
}

type AllocationConfig struct {
	PoolPercentage      decimal.Decimal `mapstructure:"pool_percentage"`
	LiquidityPercentage decimal.Decimal `mapstructure:"liquidity_percentage"`
}

type OrchestratorConfig struct {
	PoolCreateTimeout    time.Duration `mapstructure:"pool_create_timeout"`
	PoolCreateAttempts   int           `mapstructure:"pool_create_attempts"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval"`
	SweepInterval        time.Duration `mapstructure:"sweep_interval"`
	SweepConcurrency     int           `mapstructure:"sweep_concurrency"`
}

type TradingConfig struct {
	SettlementTimeout time.Duration `mapstructure:"settlement_timeout"`
	QueueSize         int           `mapstructure:"queue_size"`
}

type PostgresConfig struct {
	URL             string        `mapstructure:"url"` // пусто - хранилище в памяти
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectAttempts int           `mapstructure:"connect_attempts"`
	SlowQuery       time.Duration `mapstructure:"slow_query"`
}

// NATSConfig включает публикацию событий, если URL задан.
type NATSConfig struct {
	notify.Config `mapstructure:",squash"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PaperConfig настраивает бумажные расчеты и создание пулов.
type PaperConfig struct {
	SettlementLatency time.Duration   `mapstructure:"settlement_latency"`
	PoolLatency       time.Duration   `mapstructure:"pool_latency"`
	SolUsdPrice       decimal.Decimal `mapstructure:"sol_usd_price"`
	PayerKey          string          `mapstructure:"payer_key"` // base58; пусто - временный ключ
}

const (
	DefaultSweepInterval    = 30 * time.Second
	DefaultSweepConcurrency = 4
	DefaultHTTPAddr         = ":8080"
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"curve.virtual_sol_reserves":   "30",
		"curve.virtual_token_reserves": "1073000000",
		"curve.platform_fee_percent":   "0.99",
		"curve.max_market_cap":         "69000",
		"curve.total_supply":           "1000000000",

		"graduation.minimum_market_cap":      "69000",
		"graduation.minimum_liquidity":       "8",
		"graduation.minimum_holders":         0,
		"graduation.minimum_volume_24h":      "0",
		"graduation.minimum_age":             "0s",
		"graduation.graduation_fee_percent":  "0",
		"graduation.liquidity_lock_days":     0,
		"graduation.market_cap_denomination": string(graduation.DenominationSOL),
		"graduation.cache_ttl":               graduation.DefaultCacheTTL.String(),

		"allocation.pool_percentage":      "20",
		"allocation.liquidity_percentage": "80",

		"orchestrator.pool_create_timeout":    "30s",
		"orchestrator.pool_create_attempts":   1,
		"orchestrator.retry_initial_interval": "500ms",
		"orchestrator.sweep_interval":         DefaultSweepInterval.String(),
		"orchestrator.sweep_concurrency":      DefaultSweepConcurrency,

		"trading.settlement_timeout": "30s",
		"trading.queue_size":         64,

		"postgres.url":               "",
		"postgres.max_idle_conns":    10,
		"postgres.max_open_conns":    100,
		"postgres.conn_max_lifetime": "1h",
		"postgres.connect_attempts":  5,
		"postgres.slow_query":        "200ms",

		"redis.enabled":    false,
		"redis.addr":       "",
		"redis.password":   "",
		"redis.db":         0,
		"redis.ttl":        graduation.DefaultCacheTTL.String(),
		"redis.key_prefix": "launchpad",

		"nats.url":             "",
		"nats.stream":          notify.DefaultConfig().Stream,
		"nats.subject_root":    notify.DefaultConfig().SubjectRoot,
		"nats.publish_timeout": notify.DefaultConfig().PublishTimeout.String(),

		"http.addr":             DefaultHTTPAddr,
		"http.read_timeout":     "10s",
		"http.write_timeout":    "30s",
		"http.shutdown_timeout": "15s",

		"paper.settlement_latency": "0s",
		"paper.pool_latency":       "0s",
		"paper.sol_usd_price":      "0",
		"paper.payer_key":          "",

		"log.file":        "",
		"log.level":       "info",
		"log.max_size":    100,
		"log.max_age":     7,
		"log.max_backups": 3,
		"log.compress":    true,
		"log.development": false,
	}
}

// LoadConfig читает конфигурацию. path может быть пустым - тогда используются
// значения по умолчанию и переменные окружения LAUNCHPAD_*.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		decimalHook,
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, cfg.Validate()
}

// decimalHook декодирует строки и числа в decimal.Decimal.
func decimalHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(decimal.Decimal{}) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(strings.TrimSpace(v))
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case decimal.Decimal:
		return v, nil
	default:
		return nil, fmt.Errorf("cannot decode %s into decimal", from)
	}
}

// Validate проверяет конфигурацию целиком, переводя секции в доменные типы.
func (c *Config) Validate() error {
	if _, err := c.CurveConfig(); err != nil {
		return err
	}
	if _, err := c.GraduationConfig(); err != nil {
		return err
	}
	if err := graduation.ValidateAllocation(c.AllocationConfig()); err != nil {
		return err
	}
	if err := validateNumericParams(c); err != nil {
		return err
	}
	if c.Postgres.URL != "" {
		if err := validateURLWithCache(c.Postgres.URL, "postgres"); err != nil {
			return errors.New("postgres URL must use the postgres:// scheme")
		}
	}
	if c.NATS.URL != "" {
		if err := validateURLWithCache(c.NATS.URL, "nats"); err != nil {
			return errors.New("NATS URL must use the nats:// scheme")
		}
		if err := c.NATS.Config.Validate(); err != nil {
			return err
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	return nil
}

func validateNumericParams(c *Config) error {
	if c.Orchestrator.PoolCreateTimeout <= 0 {
		return errors.New("invalid orchestrator.pool_create_timeout")
	}
	if c.Orchestrator.PoolCreateAttempts < 1 {
		return errors.New("invalid orchestrator.pool_create_attempts")
	}
	if c.Orchestrator.SweepInterval < 0 {
		return errors.New("invalid orchestrator.sweep_interval")
	}
	if c.Orchestrator.SweepConcurrency < 1 {
		return errors.New("invalid orchestrator.sweep_concurrency")
	}
	if c.Trading.SettlementTimeout <= 0 {
		return errors.New("invalid trading.settlement_timeout")
	}
	if c.Trading.QueueSize < 0 {
		return errors.New("invalid trading.queue_size")
	}
	if c.Graduation.CacheTTL <= 0 {
		return errors.New("invalid graduation.cache_ttl")
	}
	if c.Paper.SolUsdPrice.IsNegative() {
		return errors.New("invalid paper.sol_usd_price")
	}
	return nil
}

// CurveConfig converts the curve section into base units.
func (c *Config) CurveConfig() (curve.Config, error) {
	sol, err := curve.SolToLamports(c.Curve.VirtualSolReserves)
	if err != nil {
		return curve.Config{}, fmt.Errorf("curve.virtual_sol_reserves: %w", err)
	}
	tokens, err := curve.TokensToUnits(c.Curve.VirtualTokenReserves)
	if err != nil {
		return curve.Config{}, fmt.Errorf("curve.virtual_token_reserves: %w", err)
	}
	supply, err := curve.TokensToUnits(c.Curve.TotalSupply)
	if err != nil {
		return curve.Config{}, fmt.Errorf("curve.total_supply: %w", err)
	}
	cfg := curve.Config{
		VirtualSolReserves:   sol,
		VirtualTokenReserves: tokens,
		PlatformFeePercent:   c.Curve.PlatformFeePercent,
		MaxMarketCap:         c.Curve.MaxMarketCap,
		TotalSupply:          supply,
	}
	if err := cfg.Validate(); err != nil {
		return curve.Config{}, err
	}
	return cfg, nil
}

// GraduationConfig converts the graduation section into base units.
func (c *Config) GraduationConfig() (graduation.Config, error) {
	liquidity, err := curve.SolToLamports(c.Graduation.MinimumLiquidity)
	if err != nil {
		return graduation.Config{}, fmt.Errorf("graduation.minimum_liquidity: %w", err)
	}
	volume, err := curve.SolToLamports(c.Graduation.MinimumVolume24h)
	if err != nil {
		return graduation.Config{}, fmt.Errorf("graduation.minimum_volume_24h: %w", err)
	}
	cfg := graduation.Config{
		MinimumMarketCap:      c.Graduation.MinimumMarketCap,
		MinimumLiquidity:      liquidity,
		MinimumHolders:        c.Graduation.MinimumHolders,
		MinimumVolume24h:      volume,
		MinimumAge:            c.Graduation.MinimumAge,
		GraduationFeePercent:  c.Graduation.GraduationFeePercent,
		LiquidityLockDays:     c.Graduation.LiquidityLockDays,
		MarketCapDenomination: graduation.Denomination(strings.ToUpper(c.Graduation.MarketCapDenomination)),
	}
	if err := cfg.Validate(); err != nil {
		return graduation.Config{}, err
	}
	return cfg, nil
}

// AllocationConfig returns the liquidity split; the platform fee mirrors the curve fee.
func (c *Config) AllocationConfig() graduation.AllocationConfig {
	return graduation.AllocationConfig{
		PoolPercentage:      c.Allocation.PoolPercentage,
		LiquidityPercentage: c.Allocation.LiquidityPercentage,
		PlatformFeePercent:  c.Curve.PlatformFeePercent,
	}
}

// OrchestratorConfig returns the graduation orchestrator settings.
func (c *Config) OrchestratorConfig() graduation.OrchestratorConfig {
	return graduation.OrchestratorConfig{
		PoolCreateTimeout:    c.Orchestrator.PoolCreateTimeout,
		PoolCreateAttempts:   c.Orchestrator.PoolCreateAttempts,
		RetryInitialInterval: c.Orchestrator.RetryInitialInterval,
		LiquidityLockDays:    c.Graduation.LiquidityLockDays,
	}
}

// DeskConfig returns the trade desk settings.
func (c *Config) DeskConfig() trading.DeskConfig {
	return trading.DeskConfig{
		SettlementTimeout: c.Trading.SettlementTimeout,
		QueueSize:         c.Trading.QueueSize,
	}
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}
