// Package db opens the database, migrates the schema and hands out document numbers.
package db

import (
	"fmt"
	"regexp"
	"time"

	"github.com/diewo77/go-erp/internal/config"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	kvPasswordRegex  = regexp.MustCompile(`(password=)\S+`)
	urlPasswordRegex = regexp.MustCompile(`^([^:@/]+):[^@]*@`)
)

// Dialector picks the GORM driver for cfg.Driver.
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres", "":
		return postgres.Open(cfg.DSN()), nil
	case "mysql":
		return mysql.Open(cfg.DSN()), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

// Open connects with bounded retries so the server can start before the database is ready.
func Open(cfg config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	gcfg := &gorm.Config{Logger: NewGormLogger(log)}

	attempts := cfg.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}
	var conn *gorm.DB
	for attempt := 1; ; attempt++ {
		conn, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}
		if attempt >= attempts {
			return nil, fmt.Errorf("connect database after %d attempts: %w", attempt, err)
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.WithFields(logrus.Fields{
			"module":  "db",
			"driver":  cfg.Driver,
			"attempt": attempt,
			"dsn":     maskDSN(cfg.DSN()),
		}).WithError(err).Warnf("connect failed, retrying in %s", sleep)
		time.Sleep(sleep)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "sqlite" {
		// one writer at a time; SQLite would answer concurrent writers with SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns >= 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	if err := conn.Exec("SELECT 1").Error; err != nil {
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	log.WithFields(logrus.Fields{"module": "db", "driver": cfg.Driver}).Info("connected to database")
	return conn, nil
}

// NewGormLogger routes GORM's SQL logging through logrus.
// Statements are only logged when the logger runs at debug level.
func NewGormLogger(log *logrus.Logger) logger.Interface {
	level := logger.Warn
	if log.IsLevelEnabled(logrus.DebugLevel) {
		level = logger.Info
	}
	return logger.New(log, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func maskDSN(dsn string) string {
	dsn = kvPasswordRegex.ReplaceAllString(dsn, "${1}***")
	return urlPasswordRegex.ReplaceAllString(dsn, "${1}:***@")
}
