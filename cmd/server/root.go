package main

import (
	"context"
	"fmt"
	"time"

	"github.com/diewo77/go-erp/internal/config"
	"github.com/diewo77/go-erp/internal/db"
	"github.com/diewo77/go-erp/internal/lock"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var version = "dev"

// app is what every subcommand needs once configuration is loaded.
type app struct {
	cfg config.Config
	log *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "erp",
		Short:         "Invoicing and payments API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// .env is optional; real environment variables win.
			_ = godotenv.Load()
			a.cfg = *config.Load()
			a.log = config.NewLogger(a.cfg.Log, cmd.ErrOrStderr())
		},
	}
	serve := newServeCmd(a)
	root.RunE = serve.RunE
	root.AddCommand(serve, newMigrateCmd(a), newSeedCmd(a), newTokenCmd(a))
	return root
}

func (a *app) openDB() (*gorm.DB, error) {
	return db.Open(a.cfg.Database, a.log)
}

// newLocker builds the invoice lock backend. The returned func releases its resources.
func (a *app) newLocker(ctx context.Context) (lock.Locker, func(), error) {
	switch a.cfg.Lock.Backend {
	case "", "local":
		a.log.WithField("backend", "local").Info("invoice locks are process-local")
		return lock.NewLocal(), func() {}, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", a.cfg.Redis.Addr, err)
		}
		a.log.WithFields(logrus.Fields{"backend": "redis", "addr": a.cfg.Redis.Addr}).Info("invoice locks are shared through redis")
		l := lock.NewRedis(rdb, lock.RedisOptions{
			Prefix:     "erp:lock:",
			TTL:        a.cfg.Lock.TTL,
			RetryEvery: a.cfg.Lock.RetryEvery,
		}, a.log)
		return l, func() { _ = rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown LOCK_BACKEND %q", a.cfg.Lock.Backend)
	}
}
