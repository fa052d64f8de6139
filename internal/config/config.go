package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvLocal = "local"
	EnvProd  = "prod"
)

type Config struct {
	Env    string       `mapstructure:"env"`
	Log    LogConfig    `mapstructure:"log"`
	Client ClientConfig `mapstructure:"client"`
	Server ServerConfig `mapstructure:"server"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ClientConfig holds settings for the npc command line client.
type ClientConfig struct {
	PrefsPath     string        `mapstructure:"prefs_path"`
	Ephemeral     bool          `mapstructure:"ephemeral"`
	DefaultServer string        `mapstructure:"default_server"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ServerConfig holds settings for the npc-server companion service.
type ServerConfig struct {
	Port        int            `mapstructure:"port"`
	CORSOrigins []string       `mapstructure:"cors_origins"`
	Database    DatabaseConfig `mapstructure:"database"`
	Auth        AuthConfig     `mapstructure:"auth"`
}

type DatabaseConfig struct {
	Type            string `mapstructure:"type"`
	Path            string `mapstructure:"path"`
	DSN             string `mapstructure:"dsn"`
	WALMode         bool   `mapstructure:"wal_mode"`
	MaxConns        int    `mapstructure:"max_conns"`
	MaxIdle         int    `mapstructure:"max_idle"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
}

type AuthConfig struct {
	Secret     string        `mapstructure:"secret"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// flagKeys maps command line flag names onto config keys.
var flagKeys = map[string]string{
	"log-level": "log.level",
	"env":       "env",
	"prefs":     "client.prefs_path",
	"ephemeral": "client.ephemeral",
	"server":    "client.default_server",
	"timeout":   "client.timeout",
	"port":      "server.port",
	"db-type":   "server.database.type",
	"db-path":   "server.database.path",
	"db-dsn":    "server.database.dsn",
	"secret":    "server.auth.secret",
}

func setDefaults(v *viper.Viper) {
	// Every key needs a default so AutomaticEnv can see it during Unmarshal.
	v.SetDefault("env", EnvLocal)
	v.SetDefault("log.level", "info")

	v.SetDefault("client.prefs_path", "npc-prefs.db")
	v.SetDefault("client.ephemeral", false)
	v.SetDefault("client.default_server", "")
	v.SetDefault("client.retry_attempts", 3)
	v.SetDefault("client.timeout", 10*time.Second)

	v.SetDefault("server.port", 7511)
	v.SetDefault("server.cors_origins", []string{"http://localhost:*", "http://127.0.0.1:*"})
	v.SetDefault("server.database.type", "sqlite")
	v.SetDefault("server.database.path", "npc.db")
	v.SetDefault("server.database.dsn", "")
	v.SetDefault("server.database.wal_mode", true)
	v.SetDefault("server.database.max_conns", 0)
	v.SetDefault("server.database.max_idle", 0)
	v.SetDefault("server.database.conn_max_lifetime", "")
	v.SetDefault("server.auth.secret", "")
	v.SetDefault("server.auth.session_ttl", 24*time.Hour)
}

// LoadConfig loads the configuration from file, environment variables and flags.
// The file is optional; a missing file falls back to defaults and environment.
// Flags win over environment, which wins over the file.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	const op = "config.LoadConfig"

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("NPC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			slog.Warn("config file not found, using defaults and environment", slog.String("path", path))
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("%s: bind flag %s: %w", op, name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.Client.RetryAttempts < 1 {
		slog.Warn("client.retry_attempts must be positive, using 3", slog.Int("got", cfg.Client.RetryAttempts))
		cfg.Client.RetryAttempts = 3
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 7511
	}

	// Only generate a secret for local runs; prod has to configure one.
	if cfg.Server.Auth.Secret == "" && cfg.Env != EnvProd {
		cfg.Server.Auth.Secret = "npc-local-secret"
	}

	return &cfg, nil
}

// Validate reports configuration the server cannot start with.
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Port)
	}
	if c.Auth.Secret == "" {
		return errors.New("server.auth.secret is required")
	}
	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("server.database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("server.database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	return nil
}

// Getenv is a small helper for places that read the environment before config is loaded.
func Getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
