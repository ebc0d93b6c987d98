package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// ZapLogger 把 gorm 日志转发到 zap
type ZapLogger struct {
	Logger *zap.Logger
	Config gormLogger.Config
}

func (l *ZapLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	newlogger := *l
	newlogger.Config.LogLevel = level
	return &newlogger
}

func (l *ZapLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel < gormLogger.Info {
		return
	}
	l.Logger.Info(fmt.Sprintf(msg, data...),
		zap.String("source", utils.FileWithLineNum()),
		zap.String("agg_type", "gorm"),
	)
}

func (l *ZapLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel < gormLogger.Warn {
		return
	}
	l.Logger.Warn(fmt.Sprintf(msg, data...),
		zap.String("source", utils.FileWithLineNum()),
		zap.String("agg_type", "gorm"),
	)
}

func (l *ZapLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel < gormLogger.Error {
		return
	}
	l.Logger.Error(fmt.Sprintf(msg, data...),
		zap.String("source", utils.FileWithLineNum()),
		zap.String("agg_type", "gorm"),
	)
}

// Trace 记录 SQL 执行情况: 错误 / 慢查询 / debug 级别的全量 SQL
func (l *ZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.Config.LogLevel <= gormLogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.Config.LogLevel >= gormLogger.Error && (!errors.Is(err, gormLogger.ErrRecordNotFound) || !l.Config.IgnoreRecordNotFoundError):
		sql, rows := fc()
		l.Logger.Error(err.Error(),
			zap.String("source", utils.FileWithLineNum()),
			zap.Float64("query_time", float64(elapsed.Nanoseconds())/1e6),
			zap.Int64("rows", rows),
			zap.String("sql", sql),
			zap.String("agg_type", "gorm"),
		)

	case elapsed > l.Config.SlowThreshold && l.Config.SlowThreshold != 0 && l.Config.LogLevel >= gormLogger.Warn:
		sql, rows := fc()
		l.Logger.Warn(fmt.Sprintf("SLOW SQL >= %v", l.Config.SlowThreshold),
			zap.String("source", utils.FileWithLineNum()),
			zap.Float64("query_time", float64(elapsed.Nanoseconds())/1e6),
			zap.Int64("rows", rows),
			zap.String("sql", sql),
			zap.String("agg_type", "gorm"),
		)

	case l.Config.LogLevel == gormLogger.Info:
		sql, rows := fc()
		l.Logger.Debug("sql log",
			zap.String("source", utils.FileWithLineNum()),
			zap.Float64("query_time", float64(elapsed.Nanoseconds())/1e6),
			zap.Int64("rows", rows),
			zap.String("sql", sql),
			zap.String("agg_type", "gorm"),
		)
	}
}
