package appbootstrap

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"safeshield/api"
	"safeshield/config"
	"safeshield/core/auth"
	"safeshield/core/store"
	"safeshield/core/utils"
)

// Run wires the whole application together and blocks until SIGINT/SIGTERM.
func Run(configPath string) error {
	logger := utils.NewLogger()
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		return err
	}

	comp, err := composeRuntime(cfg, db, logger)
	if err != nil {
		return err
	}
	if err := auth.EnsureBootstrapAdmin(ctx, comp.users, cfg, logger); err != nil {
		return err
	}

	for _, w := range comp.workers {
		if err := w.StartWithContext(ctx); err != nil {
			return err
		}
	}

	server := api.NewServer(cfg, comp.serverDeps, logger)
	serveErr := server.ListenAndServe(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, w := range comp.workers {
		if err := w.StopWithContext(stopCtx); err != nil {
			logger.Errorf("stop worker: %v", err)
		}
	}
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return nil
}
