// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/rovshanmuradov/launchpad/internal/storage/models"
)

// migrationLockID - ключ advisory lock для миграций
const migrationLockID = 7_302_101

// Options настраивают пул соединений.
type Options struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	SlowQuery       time.Duration // 0 - не отмечать медленные запросы
}

// DefaultOptions returns the pool settings used in production.
func DefaultOptions() Options {
	return Options{MaxIdleConns: 10, MaxOpenConns: 100, ConnMaxLifetime: time.Hour, SlowQuery: 200 * time.Millisecond}
}

// Store реализует storage.CurveStore, graduation.EventStore и fund.Store поверх PostgreSQL.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to PostgreSQL through gorm.
func Open(dsn string, opts Options, zapLogger *zap.Logger) (*Store, error) {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newQueryLogger(zapLogger.Named("gorm"), opts.SlowQuery),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Настройка пула соединений
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	return &Store{
		db:     db,
		logger: zapLogger.Named("postgres"),
	}, nil
}

// Migrate применяет схему через GORM AutoMigrate под advisory lock.
// Блокировка и разблокировка выполняются на одном соединении.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		var lockObtained bool
		if err := conn.Raw("SELECT pg_try_advisory_lock(?)", migrationLockID).Scan(&lockObtained).Error; err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		if !lockObtained {
			return fmt.Errorf("another migration is in progress")
		}
		defer conn.Exec("SELECT pg_advisory_unlock(?)", migrationLockID)

		if err := conn.AutoMigrate(
			&models.Curve{},
			&models.GraduationEvent{},
			&models.Withdrawal{},
			&models.Trade{},
		); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		s.logger.Info("Database schema migrated")
		return nil
	})
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
