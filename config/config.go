package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JohnGrosso13/r2up"
	"github.com/JohnGrosso13/r2up/database"
	r2uphttp "github.com/JohnGrosso13/r2up/http"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for r2up.
type Config struct {
	Server   ServerConfig        `mapstructure:"server"`
	Store    StoreConfig         `mapstructure:"store"`
	Database database.Config     `mapstructure:"database"`
	CORS     r2uphttp.CORSConfig `mapstructure:"cors"`
	Cleanup  CleanupConfig       `mapstructure:"cleanup"`
	Log      LogConfig           `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port          int   `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxUploadSize int64 `mapstructure:"max_upload_size" validate:"min=0"`
}

// StoreConfig holds the object store configuration.
type StoreConfig struct {
	Credentials r2up.Credentials `mapstructure:"credentials"`

	PublicBaseURL        string `mapstructure:"public_base_url"`
	SiteOrigin           string `mapstructure:"site_origin"`
	Env                  string `mapstructure:"env" validate:"required,oneof=production development"`
	KeyPrefix            string `mapstructure:"key_prefix"`
	PartURLTTL           int    `mapstructure:"part_url_ttl" validate:"min=0"` // seconds
	DisableProxyFallback bool   `mapstructure:"disable_proxy_fallback"`
}

// CleanupConfig holds stale-session cleanup configuration.
type CleanupConfig struct {
	Timeout int `mapstructure:"timeout" validate:"min=1"` // seconds
	MaxAge  int `mapstructure:"max_age" validate:"min=1"` // hours
	Limit   int `mapstructure:"limit" validate:"min=1"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// ServiceConfig assembles the upload service configuration. The session
// ledger and logger are attached by the caller.
func (c *Config) ServiceConfig() (r2up.ServiceConfig, error) {
	env, err := r2up.ParseEnvMode(c.Store.Env)
	if err != nil {
		return r2up.ServiceConfig{}, fmt.Errorf("service config: %w", err)
	}

	return r2up.ServiceConfig{
		Credentials:          c.Store.Credentials,
		PublicBaseURL:        c.Store.PublicBaseURL,
		SiteOrigin:           c.Store.SiteOrigin,
		Env:                  env,
		KeyPrefix:            c.Store.KeyPrefix,
		PartURLTTL:           time.Duration(c.Store.PartURLTTL) * time.Second,
		DisableProxyFallback: c.Store.DisableProxyFallback,
	}, nil
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":         "database.type",
	"db-dsn":          "database.dsn",
	"port":            "server.port",
	"env":             "store.env",
	"bucket":          "store.credentials.bucket",
	"account-host":    "store.credentials.account_host",
	"public-base-url": "store.public_base_url",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5710)
	v.SetDefault("server.max_upload_size", 32<<20) // 32 MiB

	v.SetDefault("store.env", "development")
	v.SetDefault("store.key_prefix", "uploads")
	v.SetDefault("store.part_url_ttl", 1800) // 30 minutes
	v.SetDefault("store.credentials.region", "auto")
	v.SetDefault("store.credentials.service", "s3")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "r2up.db")
	v.SetDefault("database.tables.sessions", "r2up_sessions")

	v.SetDefault("cleanup.timeout", 30) // seconds
	v.SetDefault("cleanup.max_age", 24) // hours
	v.SetDefault("cleanup.limit", 100)

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("R2UP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
