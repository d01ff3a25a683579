package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.Storage.Driver != "sqlite" || cfg.Gamification.RoleCacheTTLHours != 24 || cfg.Gamification.RoleBatchSize != 50 {
		t.Fatalf("defaults=%+v", cfg)
	}
	if cfg.Gamification.ApprovalRating != 4.0 || cfg.Gamification.LedgerMaxRetries != 5 {
		t.Fatalf("gamification defaults=%+v", cfg.Gamification)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestWriteFileThenLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config", "config.yaml")

	cfg := Default()
	cfg.Storage.DBPath = filepath.Join(dir, "xp.db")
	cfg.App.Timezone = "UTC"
	cfg.Gamification.BadgeBonusXP = 25
	cfg.Rules.Watch = true
	if err := WriteFile(path, cfg); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.Storage.DBPath != cfg.Storage.DBPath || got.Gamification.BadgeBonusXP != 25 || !got.Rules.Watch {
		t.Fatalf("loaded=%+v", got)
	}
	loc, err := got.App.Location()
	if err != nil || loc.String() != "UTC" {
		t.Fatalf("location=%v err=%v", loc, err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := WriteFile(path, Default()); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	t.Setenv("XPFORGE_GAMIFICATION_ROLE_BATCH_SIZE", "7")

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.Gamification.RoleBatchSize != 7 {
		t.Fatalf("role_batch_size=%d, want 7", got.Gamification.RoleBatchSize)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"driver":       func(c *Config) { c.Storage.Driver = "mysql" },
		"postgres dsn": func(c *Config) { c.Storage.Driver = "postgres" },
		"redis addr":   func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" },
		"rating":       func(c *Config) { c.Gamification.ApprovalRating = 6 },
		"timezone":     func(c *Config) { c.App.Timezone = "Mars/Olympus" },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestSetupLoggerWritesFile(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "logs", "xpforge.log")
	closer, err := SetupLogger(LoggerOptions{Level: "debug", Path: path, Component: "test"})
	if err != nil {
		t.Fatalf("SetupLogger error: %v", err)
	}
	slog.Info("hello")
	if closer == nil {
		t.Fatalf("closer should not be nil when path is set")
	}
	_ = closer.Close()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(b) == 0 {
		t.Fatalf("log file is empty")
	}
}
