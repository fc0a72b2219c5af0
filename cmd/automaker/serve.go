package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/shaneholloman/automaker/internal/api"
	"github.com/shaneholloman/automaker/internal/config"
	"github.com/shaneholloman/automaker/internal/service"
	"github.com/shaneholloman/automaker/internal/storage"
)

const shutdownGrace = 10 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			addr, _ := cmd.Flags().GetString("addr")
			return runServe(cfgPath, addr)
		},
	}
	cmd.Flags().String("config", "", "path to automaker.toml (default: walk up from cwd)")
	cmd.Flags().String("addr", "", "listen address (overrides config)")
	return cmd
}

func runServe(cfgPath, addrOverride string) error {
	cfg, err := config.LoadOrDefaults(cfgPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	stateDir, err := cfg.ResolveStateDir()
	if err != nil {
		return err
	}
	store, err := storage.NewJSONFileStorage(stateDir)
	if err != nil {
		return err
	}

	registry := newRegistry(cfg, logger)
	coordinator := service.NewCoordinator(service.CoordinatorConfig{
		Registry: registry,
		Storage:  store,
		Settings: cfg,
		Logger:   logger,
	})

	handler := api.NewHandler(coordinator, registry, logger)
	router := chi.NewRouter()
	handler.Mount(router)

	addr := addrOverride
	if addr == "" {
		addr = cfg.Server.Addr
	}
	srv := &http.Server{Addr: addr, Handler: router}

	ctx, stop := signalContext()
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", addr, "state_dir", stateDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := coordinator.Shutdown(shutdownCtx); err != nil {
		logger.Warn("coordinator shutdown", "error", err)
	}
	return nil
}
