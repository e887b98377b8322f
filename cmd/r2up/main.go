package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JohnGrosso13/r2up/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "r2up",
	Short:   "Upload subsystem for S3-compatible object stores",
	Long: `r2up signs requests against an S3-compatible object store,
orchestrates multipart upload sessions, and serves a same-origin
proxy for the stored objects.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		setupLogging(cfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file path, repeatable; later files win (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (default: sqlite, env: R2UP_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (default: r2up.db, env: R2UP_DATABASE_DSN)")
	rootCmd.PersistentFlags().Int("port", 0, "HTTP server port (default: 5710, env: R2UP_SERVER_PORT)")
	rootCmd.PersistentFlags().String("env", "", "operating mode: production, development (env: R2UP_STORE_ENV)")
	rootCmd.PersistentFlags().String("bucket", "", "store bucket name (env: R2UP_STORE_CREDENTIALS_BUCKET)")
	rootCmd.PersistentFlags().String("account-host", "", "account-scoped store API host (env: R2UP_STORE_CREDENTIALS_ACCOUNT_HOST)")
	rootCmd.PersistentFlags().String("public-base-url", "", "public base URL objects are served from (env: R2UP_STORE_PUBLIC_BASE_URL)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFiles, _ := cmd.Flags().GetStringSlice("config")
	if len(configFiles) == 0 {
		if _, err := os.Stat("config.yaml"); err == nil {
			configFiles = []string{"config.yaml"}
		}
	}
	return config.Load(configFiles, cmd.Flags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
