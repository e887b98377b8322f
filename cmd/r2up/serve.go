package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JohnGrosso13/r2up"
	"github.com/JohnGrosso13/r2up/config"
	"github.com/JohnGrosso13/r2up/database"
	r2uphttp "github.com/JohnGrosso13/r2up/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upload proxy server",
	Long: `Start the HTTP server that proxies stored objects on a same-origin
path and exposes the multipart session API.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	ledger, closeDB, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer closeDB()
	slog.Info("connected to database", "type", cfg.Database.Type)

	svcCfg, err := cfg.ServiceConfig()
	if err != nil {
		return err
	}
	svcCfg.Ledger = ledger

	service, err := r2up.NewService(svcCfg)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	// Kick off bucket CORS provisioning so the first browser upload does
	// not pay for it. Failures are logged and retried on demand.
	service.EnsureCORS(ctx)

	handlerConfig := r2uphttp.HandlerConfig{
		MaxUploadSize: cfg.Server.MaxUploadSize,
		CORS:          cfg.CORS,
	}
	handler := r2uphttp.NewHandler(&handlerConfig, service)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server", "addr", addr, "env", cfg.Store.Env)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
