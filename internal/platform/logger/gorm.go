package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger adapts a zap logger to GORM's logger interface.
type GormLogger struct {
	logger               *zap.Logger
	level                gormlogger.LogLevel
	slowThreshold        time.Duration
	ignoreRecordNotFound bool
}

// NewGormLogger creates a GORM logger adapter backed by zap.
func NewGormLogger(logger *zap.Logger, level gormlogger.LogLevel, slowThreshold time.Duration, ignoreRecordNotFound bool) *GormLogger {
	return &GormLogger{
		logger:               logger,
		level:                level,
		slowThreshold:        slowThreshold,
		ignoreRecordNotFound: ignoreRecordNotFound,
	}
}

// LogMode returns a copy with the given log level.
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.logger.Sugar().Infof(msg, args...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.logger.Sugar().Warnf(msg, args...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.logger.Sugar().Errorf(msg, args...)
	}
}

// Trace logs completed SQL statements, flagging slow queries.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}

	switch {
	case err != nil && l.level >= gormlogger.Error &&
		!(l.ignoreRecordNotFound && errors.Is(err, gorm.ErrRecordNotFound)):
		l.logger.Error("gorm query failed", append(fields, zap.Error(err))...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.logger.Warn("gorm slow query", fields...)
	case l.level >= gormlogger.Info:
		l.logger.Debug("gorm query", fields...)
	}
}
