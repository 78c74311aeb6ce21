package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("JASKLEDGER_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite3", cfg.Database.Driver)
	require.Equal(t, filepath.Join(home, ".local", "share", "jaskledger", "jaskledger.db"), cfg.Database.Path)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	require.Equal(t, "0 18 * * *", cfg.Scheduler.Schedule)
	require.Equal(t, 4, cfg.Scheduler.Concurrency)
	require.False(t, cfg.Scheduler.Enabled)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[database]
path = "/tmp/ledger.db"

[scheduler]
enabled = true
schedule = "*/5 * * * *"
timezone = "Europe/Rome"

[ui]
currency_symbol = "$"
`), 0o644))
	t.Setenv("JASKLEDGER_CONFIG", path)
	t.Setenv("JASKLEDGER_SERVER_ADDR", "127.0.0.1:9999")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/ledger.db", cfg.Database.Path)
	require.True(t, cfg.Scheduler.Enabled)
	require.Equal(t, "*/5 * * * *", cfg.Scheduler.Schedule)
	require.Equal(t, "Europe/Rome", cfg.Scheduler.Timezone)
	require.Equal(t, "$", cfg.UI.CurrencySymbol)
	require.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("JASKLEDGER_CONFIG", filepath.Join(t.TempDir(), "nope.toml"))

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{
		Database:  DatabaseConfig{Driver: "sqlite3", Path: "x.db"},
		Scheduler: SchedulerConfig{Concurrency: 1},
	}
	require.NoError(t, base.Validate())

	mysqlNoDSN := base
	mysqlNoDSN.Database = DatabaseConfig{Driver: "mysql"}
	require.Error(t, mysqlNoDSN.Validate())

	unknown := base
	unknown.Database.Driver = "postgres"
	require.Error(t, unknown.Validate())

	noWorkers := base
	noWorkers.Scheduler.Concurrency = 0
	require.Error(t, noWorkers.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "conf", "config.toml")
	t.Setenv("JASKLEDGER_CONFIG", path)

	cfg := Config{
		Database:  DatabaseConfig{Driver: "sqlite3", Path: filepath.Join(dir, "l.db")},
		Server:    ServerConfig{Addr: ":7000", ReadTimeout: 3 * time.Second, WriteTimeout: 4 * time.Second},
		Scheduler: SchedulerConfig{Enabled: true, Schedule: "0 6 * * *", Timezone: "UTC", Concurrency: 2},
		Log:       LogConfig{Level: "debug", Format: "json"},
		UI:        UIConfig{DateFormat: "02/01/2006", CurrencySymbol: "£"},
	}
	require.NoError(t, Save(cfg))

	loaded, err := Load()
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}
