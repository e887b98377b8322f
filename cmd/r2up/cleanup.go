package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/JohnGrosso13/r2up"
	"github.com/JohnGrosso13/r2up/config"
	"github.com/JohnGrosso13/r2up/database"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Abort stale multipart sessions",
	Long: `Abort multipart sessions that were created but never completed.

Unfinished sessions keep their uploaded parts on the store, where they
accumulate storage charges until aborted. This command lists sessions
from the ledger that have been in the created state longer than the
configured maximum age, aborts each one on the store, and marks the
ledger entry aborted.

Run this periodically to reclaim storage from abandoned uploads.`,
	RunE: runCleanup,
}

var (
	cleanupLimit  int
	cleanupMaxAge int
)

func init() {
	cleanupCmd.Flags().IntVar(&cleanupLimit, "limit", 0, "maximum number of sessions to abort per batch")
	cleanupCmd.Flags().IntVar(&cleanupMaxAge, "max-age", 0, "minimum session age in hours before it counts as stale")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	limit := cfg.Cleanup.Limit
	if cleanupLimit > 0 {
		limit = cleanupLimit
	}
	maxAgeHours := cfg.Cleanup.MaxAge
	if cleanupMaxAge > 0 {
		maxAgeHours = cleanupMaxAge
	}
	maxAge := time.Duration(maxAgeHours) * time.Hour

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.Cleanup.Timeout)*time.Second)
	defer cancel()

	ledger, closeDB, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer closeDB()

	svcCfg, err := cfg.ServiceConfig()
	if err != nil {
		return err
	}
	svcCfg.Ledger = ledger

	service, err := r2up.NewService(svcCfg)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	slog.Info("starting cleanup", "max_age", maxAge, "limit", limit)

	aborted, err := service.CleanupStale(ctx, maxAge, limit)
	if err != nil {
		return fmt.Errorf("cleanup stale sessions: %w", err)
	}

	slog.Info("cleanup complete", "sessions_aborted", aborted)
	return nil
}
