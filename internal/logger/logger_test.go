package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"universes/internal/config"
)

func TestNewRespectsLevel(t *testing.T) {
	log, err := New(config.Config{LogLevel: "error"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if log.Core().Enabled(zapcore.WarnLevel) {
		t.Fatal("warn should be disabled at error level")
	}
	if !log.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatal("error should be enabled")
	}
}

func TestNewWritesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universes.log")
	log, err := New(config.Config{LogLevel: "info", LogFile: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("hello file")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Fatalf("log file missing entry: %q", data)
	}
}
