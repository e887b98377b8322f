// Package config provides configuration loading and validation for r2up.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (R2UP_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with R2UP_ prefix:
//   - server.port → R2UP_SERVER_PORT
//   - database.type → R2UP_DATABASE_TYPE
//   - store.credentials.bucket → R2UP_STORE_CREDENTIALS_BUCKET
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port and max_upload_size for the HTTP layer
//   - Store: object store credentials, public base URL, and upload tuning
//   - Database: session ledger type, DSN, and table names
//   - CORS: cross-origin resource sharing settings for the HTTP layer
//   - Cleanup: stale-session cleanup timeout, age threshold, and batch limit
//   - Log: logging level
//
// # Validation
//
// Configuration is validated using struct tags:
//   - Port must be 1-65535
//   - Env must be production or development
//   - Log level must be debug, info, warn, or error
package config
