package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{configPathEnv, databaseDSNEnv, databaseDrvEnv, youtubeAPIKeyEnv, triggerSecretEnv, logLevelEnv, httpAddrEnv, countriesEnv} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load("")
	if cfg.Database.Driver != "sqlite" || cfg.HTTP.Addr != ":8000" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.Collection.Countries) != 2 || cfg.Collection.Countries[0] != "US" {
		t.Fatalf("unexpected countries: %v", cfg.Collection.Countries)
	}
	if cfg.Forum.Pages != 5 || cfg.Trends.Lookback != 30 || cfg.YouTube.MaxResults != 10 {
		t.Fatalf("unexpected collector defaults: %+v", cfg)
	}
	if !errors.Is(cfg.Validate(), ErrMissingTriggerSecret) {
		t.Fatal("missing trigger secret should fail validation")
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
database:
  driver: postgres
  dsn: postgres://file
scheduler:
  enabled: true
  interval: 6h
youtube:
  keywords: ["n8n discord"]
  pause: 250ms
forum:
  pages: 2
trends:
  tzOffset: -330
  regions:
    DE: DE
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(databaseDSNEnv, "postgres://env")
	t.Setenv(youtubeAPIKeyEnv, "yt-key")
	t.Setenv(triggerSecretEnv, "s3cret")
	t.Setenv(countriesEnv, "us, de ,")

	cfg := Load(path)
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "postgres://env" {
		t.Fatalf("unexpected database config: %+v", cfg.Database)
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.Interval != 6*time.Hour {
		t.Fatalf("unexpected scheduler: %+v", cfg.Scheduler)
	}
	if cfg.YouTube.APIKey != "yt-key" || cfg.YouTube.Pause != 250*time.Millisecond || cfg.YouTube.Keywords[0] != "n8n discord" {
		t.Fatalf("unexpected youtube config: %+v", cfg.YouTube)
	}
	if cfg.Forum.Pages != 2 || cfg.Forum.TopicCap != 80 {
		t.Fatalf("unexpected forum config: %+v", cfg.Forum)
	}
	if cfg.Trends.Regions["DE"] != "DE" || cfg.Trends.Timeframe != "today 3-m" || cfg.Trends.TZOffset != -330 || cfg.Trends.Language != "en-US" {
		t.Fatalf("unexpected trends config: %+v", cfg.Trends)
	}
	if len(cfg.Collection.Countries) != 2 || cfg.Collection.Countries[1] != "de" {
		t.Fatalf("unexpected countries: %v", cfg.Collection.Countries)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides variables that are already set, even to "".
	os.Unsetenv(triggerSecretEnv)
	t.Cleanup(func() { os.Unsetenv(triggerSecretEnv) })

	if err := os.WriteFile(dotEnvFile, []byte("TRIGGER_SECRET=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg := Load("")
	if cfg.Security.TriggerSecret != "from-dotenv" {
		t.Fatalf("expected secret from .env, got %q", cfg.Security.TriggerSecret)
	}
}

func TestLoadIgnoresBrokenFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("database: [oops"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Load(path)
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("broken file should fall back to defaults, got %+v", cfg.Database)
	}
}
