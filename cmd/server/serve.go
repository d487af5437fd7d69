package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/go-erp/auth"
	"github.com/diewo77/go-erp/internal/db"
	"github.com/diewo77/go-erp/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	conn, err := a.openDB()
	if err != nil {
		return err
	}
	if a.cfg.App.Migrations {
		if err := db.Migrate(conn); err != nil {
			return err
		}
		a.log.Info("migrations completed")
	}
	if err := db.Seed(conn); err != nil {
		return err
	}

	locker, closeLocker, err := a.newLocker(ctx)
	if err != nil {
		return err
	}
	defer closeLocker()

	authn := auth.New(a.cfg.Auth.Secret, a.cfg.Auth.Disabled)
	if authn.Disabled() {
		a.log.Warn("AUTH_DISABLED is set, the API accepts unauthenticated requests")
	} else if a.cfg.Auth.Secret == "" {
		a.log.Warn("AUTH_SECRET is empty, tokens are signed with the development secret")
	}

	srv := &http.Server{
		Addr: ":" + a.cfg.Server.Port,
		Handler: server.New(server.Deps{
			DB:     conn,
			Log:    a.log,
			Auth:   authn,
			Locker: locker,
			Lock:   a.cfg.Lock,
		}),
		ReadTimeout:  time.Duration(a.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithFields(logrus.Fields{
			"port":   a.cfg.Server.Port,
			"dev":    a.cfg.App.Dev,
			"driver": a.cfg.Database.Driver,
		}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Error("error during shutdown")
		return err
	}
	a.log.Info("server stopped gracefully")
	return nil
}
