// internal/utils/logger/logger.go
package logger

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger - корневой логгер сервиса: консоль плюс JSON-файл с ротацией.
type Logger struct {
	*zap.Logger
	level  zap.AtomicLevel
	rotate *lumberjack.Logger
}

// New создает логгер по конфигурации; nil - значения по умолчанию.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	lvl, err := parseLevel(cfg)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	if cfg.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	l := &Logger{level: zap.NewAtomicLevelAt(lvl)}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stdout), l.level),
	}
	if cfg.LogFile != "" {
		l.rotate = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(l.rotate), l.level))
	}

	l.Logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return l, nil
}

func parseLevel(cfg *Config) (zapcore.Level, error) {
	if cfg.Level == "" {
		if cfg.Development {
			return zapcore.DebugLevel, nil
		}
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	return level, nil
}

// Level returns the runtime-adjustable level; it serves GET/PUT over HTTP.
func (l *Logger) Level() zap.AtomicLevel {
	return l.level
}

// Sync сбрасывает буферы; ошибки sync для stdout в терминале игнорируются.
func (l *Logger) Sync() error {
	err := l.Logger.Sync()
	if err != nil && (errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY)) {
		return nil
	}
	return err
}

// Close flushes the logger and closes the rotated file.
func (l *Logger) Close() error {
	err := l.Sync()
	if l.rotate != nil {
		err = errors.Join(err, l.rotate.Close())
	}
	return err
}

// Operation returns a child logger tagged with the operation name and a fresh correlation id.
func Operation(l *zap.Logger, operation string) *zap.Logger {
	return l.With(
		zap.String("operation", operation),
		zap.String("correlation_id", uuid.New().String()),
	)
}

// Track logs the start of an operation and returns a func logging its duration.
//
//	defer logger.Track(log, "load_curves")()
func Track(l *zap.Logger, operation string) (end func()) {
	start := time.Now()
	opLogger := Operation(l, operation)
	opLogger.Debug("Starting operation")

	return func() {
		duration := time.Since(start)
		opLogger.Info("Operation completed",
			zap.Duration("duration", duration),
			zap.Float64("duration_ms", float64(duration.Microseconds())/1000),
		)
	}
}
