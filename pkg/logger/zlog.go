package logger

import (
	"errors"
	"os"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LevelEnv 日志级别环境变量
const LevelEnv = "FEED_LOGGER_LEVEL"

var (
	level  = zap.NewAtomicLevelAt(ParseLevel(os.Getenv(LevelEnv)))
	Logger = getLogger()
)

func getLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.Level = level
	newLogger, err := config.Build(
		zap.AddStacktrace(zap.ErrorLevel),
		zap.AddCallerSkip(1),
	)
	if err != nil {
		return zap.NewNop()
	}

	return newLogger
}

// ParseLevel 把配置里的字符串转成 zap 级别, 未知值按 warning 处理
func ParseLevel(logLevel string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warning", "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	case "dpanic":
		return zap.DPanicLevel
	case "panic":
		return zap.PanicLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.WarnLevel
	}
}

// SetLevel 运行时调整日志级别 (配置文件优先于环境变量时使用)
func SetLevel(logLevel string) {
	if logLevel == "" {
		return
	}
	level.SetLevel(ParseLevel(logLevel))
}

// With 返回带固定字段的子 logger, 用于组件级别的上下文
func With(fields ...zap.Field) *zap.Logger {
	return Logger.WithOptions(zap.AddCallerSkip(-1)).With(fields...)
}

func Error(msg string, fields ...zap.Field) {
	Logger.Error(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Logger.Warn(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	Logger.Info(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Logger.Debug(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Logger.Fatal(msg, fields...)
}

func Sync() {
	err := Logger.Sync()
	if err != nil && !errors.Is(err, syscall.ENOTTY) && err.Error() != "sync /dev/stderr: invalid argument" {
		Logger.Error("zLog Sync", zap.Any("err", err))
		return
	}
}
