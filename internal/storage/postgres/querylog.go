// internal/storage/postgres/querylog.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// queryLogger пишет SQL-трассировку gorm в zap. Медленные запросы логируются на Warn.
type queryLogger struct {
	log   *zap.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

func newQueryLogger(log *zap.Logger, slow time.Duration) gormlogger.Interface {
	return &queryLogger{log: log, level: gormlogger.Warn, slow: slow}
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *q
	c.level = level
	return &c
}

func (q *queryLogger) Info(_ context.Context, msg string, args ...interface{}) {
	q.emit(gormlogger.Info, zapcore.InfoLevel, msg, args)
}

func (q *queryLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	q.emit(gormlogger.Warn, zapcore.WarnLevel, msg, args)
}

func (q *queryLogger) Error(_ context.Context, msg string, args ...interface{}) {
	q.emit(gormlogger.Error, zapcore.ErrorLevel, msg, args)
}

func (q *queryLogger) emit(min gormlogger.LogLevel, lvl zapcore.Level, msg string, args []interface{}) {
	if q.level < min {
		return
	}
	q.log.Log(lvl, fmt.Sprintf(msg, args...))
}

// Trace вызывается gorm после каждого запроса.
func (q *queryLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	slow := q.slow > 0 && elapsed > q.slow
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	if !failed && !slow && q.level < gormlogger.Info {
		return
	}

	sql, rows := fc()
	fields := []zap.Field{zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql)}
	switch {
	case failed:
		q.log.Error("Query failed", append(fields, zap.Error(err))...)
	case slow:
		q.log.Warn("Slow query", append(fields, zap.Duration("threshold", q.slow))...)
	default:
		q.log.Debug("Query", fields...)
	}
}
