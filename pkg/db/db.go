package db

import (
	"fmt"
	"time"

	"github.com/iceymoss/go-feed/pkg/db/objects"
	"github.com/iceymoss/go-feed/pkg/logger"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options 数据库连接参数
type Options struct {
	Driver       string
	DSN          string
	LogLevel     string
	MaxOpenConns int
	MaxIdleConns int
	SlowQuery    time.Duration
}

// Open 根据 driver 打开 gorm 连接, 日志统一走 zap
func Open(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case DriverMySQL:
		dialector = mysql.Open(opts.DSN)
	case DriverPostgres:
		dialector = postgres.Open(opts.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	dbConn, err := gorm.Open(dialector, &gorm.Config{
		Logger: &ZapLogger{
			Logger: logger.Logger,
			Config: gormLogger.Config{
				LogLevel:                  gormLevel(opts.LogLevel),
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             opts.SlowQuery,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}

	pool, err := dbConn.DB()
	if err != nil {
		return nil, fmt.Errorf("db pool: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(opts.MaxIdleConns)
	}

	logger.Debug("db connected", zap.String("driver", opts.Driver))
	return dbConn, nil
}

// AutoMigrate 建表并创建 url 唯一索引 (生产环境建议手动建表)
func AutoMigrate(dbConn *gorm.DB) error {
	return dbConn.AutoMigrate(&objects.RawArticle{}, &objects.SummarizedArticle{})
}

func gormLevel(level string) gormLogger.LogLevel {
	switch level {
	case "silent":
		return gormLogger.Silent
	case "error", "fatal", "panic", "dpanic":
		return gormLogger.Error
	case "warning", "warn":
		return gormLogger.Warn
	case "debug", "info":
		return gormLogger.Info
	default:
		return gormLogger.Warn
	}
}
