package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"UNIVERSES_CONFIG", "DATABASE_URL", "HTTP_ADDR", "LOG_LEVEL", "LOG_FILE", "CSRF_TOKEN", "TELEGRAM_TOKEN", "REPORT_TIME", "REDIS_ADDR", "API_URL", "PRUNE_INTERVAL_HOURS"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != DefaultDatabaseURL || cfg.HTTPAddr != DefaultHTTPAddr || cfg.ReportTime != DefaultReportTime {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.PruneInterval != 24*time.Hour {
		t.Fatalf("PruneInterval = %v", cfg.PruneInterval)
	}
	if cfg.Level() != zapcore.InfoLevel {
		t.Fatalf("Level = %v", cfg.Level())
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "universes.toml")
	content := "database_url = \"file.db\"\nhttp_addr = \":9000\"\nprune_interval_hours = 6\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("UNIVERSES_CONFIG", path)
	t.Setenv("HTTP_ADDR", ":9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "file.db" {
		t.Errorf("DatabaseURL = %q, want file.db", cfg.DatabaseURL)
	}
	if cfg.HTTPAddr != ":9100" {
		t.Errorf("HTTPAddr = %q, env should win", cfg.HTTPAddr)
	}
	if cfg.PruneInterval != 6*time.Hour {
		t.Errorf("PruneInterval = %v", cfg.PruneInterval)
	}
}

func TestLoadRejectsBadPruneInterval(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRUNE_INTERVAL_HOURS", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}
