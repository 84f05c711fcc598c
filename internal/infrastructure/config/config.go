// Package config loads server configuration from defaults, an optional
// config file, and environment variables.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for all server environment variables, e.g.
// PGMCP_SERVER_ADDR.
const EnvPrefix = "PGMCP"

// Config holds the full server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr                   string        `mapstructure:"addr"`
	EndpointPath           string        `mapstructure:"endpoint_path"`
	ShutdownTimeout        time.Duration `mapstructure:"shutdown_timeout"`
	NotificationBufferSize int           `mapstructure:"notification_buffer_size"`
}

// CatalogConfig configures the periodic tool-catalog refresh.
type CatalogConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// StreamConfig configures the per-session notification stream.
type StreamConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	MessageCount int           `mapstructure:"message_count"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// DatabaseConfig holds the fallback Postgres credentials used when a
// tool call omits part of its connection_info. The fields honor the
// conventional PG* environment variables.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// Load reads configuration from an optional config.yaml in the working
// directory and the environment. Environment variables win over file
// values; a missing config file is not an error.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.endpoint_path", "/mcp")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.notification_buffer_size", 100)
	v.SetDefault("catalog.refresh_interval", 5*time.Second)
	v.SetDefault("stream.interval", time.Second)
	v.SetDefault("stream.message_count", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "postgres")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Standard PG* variables double as credential fallbacks so the
	// server picks up the same environment a psql invocation would.
	bindings := map[string][]string{
		"database.host":     {"PGMCP_DATABASE_HOST", "PGHOST"},
		"database.port":     {"PGMCP_DATABASE_PORT", "PGPORT"},
		"database.user":     {"PGMCP_DATABASE_USER", "PGUSER"},
		"database.password": {"PGMCP_DATABASE_PASSWORD", "PGPASSWORD"},
		"database.database": {"PGMCP_DATABASE_DATABASE", "PGDATABASE"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, errors.Wrapf(err, "binding environment for %s", key)
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshalling config")
	}

	return &cfg, nil
}
