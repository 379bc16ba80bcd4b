package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/youssefsiam38/transcriptpg"
	"github.com/youssefsiam38/transcriptpg/compaction"
	"github.com/youssefsiam38/transcriptpg/storage"
)

// EnvPrefix prefixes every environment override, e.g. TRANSCRIPTPG_WINDOW.
const EnvPrefix = "TRANSCRIPTPG"

// Database drivers accepted by --database-driver.
const (
	DriverPgx = "pgx"
	DriverSQL = "sql"
)

// cliConfig is the merged view of flags, environment and config file.
type cliConfig struct {
	Window          int    `mapstructure:"window"`
	Placeholder     string `mapstructure:"placeholder"`
	ToolPattern     string `mapstructure:"tool_pattern"`
	DisableFileLock bool   `mapstructure:"disable_file_lock"`
	DatabaseURL     string `mapstructure:"database_url"`
	DatabaseDriver  string `mapstructure:"database_driver"`
	LogLevel        string `mapstructure:"log_level"`
	TokenModel      string `mapstructure:"token_model"`
	UseTokenAPI     bool   `mapstructure:"use_token_api"`
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"window":          "window",
	"tool-pattern":    "tool_pattern",
	"database-url":    "database_url",
	"database-driver": "database_driver",
	"log-level":       "log_level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("window", compaction.DefaultWindow)
	v.SetDefault("placeholder", compaction.DefaultPlaceholder)
	v.SetDefault("tool_pattern", transcriptpg.DefaultToolPattern)
	v.SetDefault("disable_file_lock", false)
	v.SetDefault("database_url", "")
	v.SetDefault("database_driver", DriverPgx)
	v.SetDefault("log_level", "info")
	v.SetDefault("token_model", compaction.DefaultTokenModel)
	v.SetDefault("use_token_api", compaction.DefaultUseTokenCountingAPI)
}

// loadConfig merges defaults, the optional YAML file at configPath,
// TRANSCRIPTPG_* environment variables and explicitly set flags, in
// increasing order of precedence.
func loadConfig(configPath string, flags *pflag.FlagSet) (*cliConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: failed to read config file: %w", transcriptpg.ErrInvalidConfig, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg cliConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %w", transcriptpg.ErrInvalidConfig, err)
	}

	if cfg.DatabaseDriver != DriverPgx && cfg.DatabaseDriver != DriverSQL {
		return nil, fmt.Errorf("%w: invalid database driver %q (must be %s or %s)",
			transcriptpg.ErrInvalidConfig, cfg.DatabaseDriver, DriverPgx, DriverSQL)
	}

	return &cfg, nil
}

// compactionConfig converts the CLI view into the library config.
func (c *cliConfig) compactionConfig() *compaction.Config {
	return &compaction.Config{
		Window:              c.Window,
		Placeholder:         c.Placeholder,
		DisableFileLock:     c.DisableFileLock,
		TokenModel:          c.TokenModel,
		UseTokenCountingAPI: c.UseTokenAPI,
	}
}

// clientConfig converts the CLI view into the root client config.
func (c *cliConfig) clientConfig() transcriptpg.Config {
	return transcriptpg.Config{
		Compaction:  c.compactionConfig(),
		ToolPattern: c.ToolPattern,
	}
}

// newLogger builds the stderr logger. Stdout is reserved for command
// output and the MCP stdio transport.
func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("%w: invalid log level %q", transcriptpg.ErrInvalidConfig, level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

// anthropicClient returns a client when the token counting API is enabled
// and an API key is available.
func (c *cliConfig) anthropicClient() *anthropic.Client {
	if !c.UseTokenAPI || os.Getenv("ANTHROPIC_API_KEY") == "" {
		return nil
	}
	client := anthropic.NewClient()
	return &client
}

// openStore connects the configured store. It returns a nil store when no
// database URL is set.
func (c *cliConfig) openStore(ctx context.Context) (storage.Store, func(), error) {
	if c.DatabaseURL == "" {
		return nil, func() {}, nil
	}

	switch c.DatabaseDriver {
	case DriverSQL:
		s, err := storage.OpenSQLStore(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", transcriptpg.ErrStorageError, err)
		}
		return s, s.Close, nil
	default:
		s, err := storage.OpenPostgresStore(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", transcriptpg.ErrStorageError, err)
		}
		return s, s.Close, nil
	}
}
