package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Scheduler SchedulerConfig
	Log       LogConfig
	UI        UIConfig
}

// DatabaseConfig selects the store. Driver is sqlite3 (Path) or mysql (DSN).
// Migrations is an optional directory; empty means the migrations embedded in the binary.
type DatabaseConfig struct {
	Driver     string
	Path       string
	DSN        string
	Migrations string
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// SchedulerConfig drives the periodic auto-apply job.
type SchedulerConfig struct {
	Enabled     bool
	Schedule    string
	Timezone    string
	Concurrency int
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
}

// UIConfig holds presentation settings.
type UIConfig struct {
	DateFormat     string `mapstructure:"date_format"`
	CurrencySymbol string `mapstructure:"currency_symbol"`
}

// Load reads configuration from .env, file and env. Env var overrides use prefix JASKLEDGER_.
func Load() (Config, error) {
	// .env is optional; real environment wins over it.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("JASKLEDGER_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "jaskledger"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("JASKLEDGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "jaskledger", "jaskledger.db"))
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.migrations", "")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.schedule", "0 18 * * *")
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.concurrency", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("ui.date_format", "2006-01-02")
	v.SetDefault("ui.currency_symbol", "€")
}

// Validate rejects combinations the rest of the app cannot start with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3":
		if strings.TrimSpace(c.Database.Path) == "" {
			return fmt.Errorf("config: database.path is required for sqlite3")
		}
	case "mysql":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("config: database.dsn is required for mysql")
		}
	default:
		return fmt.Errorf("config: unsupported database.driver %q", c.Database.Driver)
	}
	if c.Scheduler.Concurrency < 1 {
		return fmt.Errorf("config: scheduler.concurrency must be at least 1")
	}
	return nil
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(cfg Config) error {
	path := os.Getenv("JASKLEDGER_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "jaskledger", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.driver", cfg.Database.Driver)
	v.Set("database.path", cfg.Database.Path)
	v.Set("database.dsn", cfg.Database.DSN)
	v.Set("database.migrations", cfg.Database.Migrations)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("server.read_timeout", cfg.Server.ReadTimeout.String())
	v.Set("server.write_timeout", cfg.Server.WriteTimeout.String())
	v.Set("scheduler.enabled", cfg.Scheduler.Enabled)
	v.Set("scheduler.schedule", cfg.Scheduler.Schedule)
	v.Set("scheduler.timezone", cfg.Scheduler.Timezone)
	v.Set("scheduler.concurrency", cfg.Scheduler.Concurrency)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)
	v.Set("ui.date_format", cfg.UI.DateFormat)
	v.Set("ui.currency_symbol", cfg.UI.CurrencySymbol)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
