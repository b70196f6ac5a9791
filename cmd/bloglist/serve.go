package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alphabot-ai/bloglist/internal/auth"
	"github.com/alphabot-ai/bloglist/internal/database"
	httpapp "github.com/alphabot-ai/bloglist/internal/http"
	"github.com/alphabot-ai/bloglist/internal/rate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :3003, env: BLOGLIST_SERVER_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := configFromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = st.Close() }()
	slog.Info("connected to database", "type", cfg.Database.Type)

	authSvc, err := auth.NewService(st, cfg.Auth)
	if err != nil {
		return fmt.Errorf("create auth service: %w", err)
	}
	if cfg.IsProd() && cfg.Auth.Secret == "dev-bloglist-secret" {
		slog.Warn("auth.secret is the development default; set BLOGLIST_AUTH_SECRET")
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapp.NewServer(st, authSvc, rate.NewMemory(), *cfg, version),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.Server.Addr, "version", version)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
