package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"
)

const (
	DefaultDatabaseURL = "universes.db"
	DefaultHTTPAddr    = ":8080"
	DefaultReportTime  = "08:00"
	DefaultAPIURL      = "http://localhost:8080"
)

// Config keeps runtime settings for the server, the scheduler and the bot.
type Config struct {
	DatabaseURL   string        `toml:"database_url"`
	HTTPAddr      string        `toml:"http_addr"`
	LogLevel      string        `toml:"log_level"`
	LogFile       string        `toml:"log_file"`
	CSRFToken     string        `toml:"csrf_token"`
	TelegramToken string        `toml:"telegram_token"`
	ReportTime    string        `toml:"report_time"`
	PruneInterval time.Duration `toml:"-"`
	PruneHours    int           `toml:"prune_interval_hours"`
	RedisAddr     string        `toml:"redis_addr"`
	APIURL        string        `toml:"api_url"`
}

// Level maps LogLevel onto a zap level. Unknown values mean warn.
func (c Config) Level() zapcore.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

// Load reads configuration from an optional TOML file (UNIVERSES_CONFIG),
// then a .env file, then environment variables, with sane defaults.
func Load() (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("UNIVERSES_CONFIG")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	override(&cfg.DatabaseURL, "DATABASE_URL")
	override(&cfg.HTTPAddr, "HTTP_ADDR")
	override(&cfg.LogLevel, "LOG_LEVEL")
	override(&cfg.LogFile, "LOG_FILE")
	override(&cfg.CSRFToken, "CSRF_TOKEN")
	override(&cfg.TelegramToken, "TELEGRAM_TOKEN")
	override(&cfg.ReportTime, "REPORT_TIME")
	override(&cfg.RedisAddr, "REDIS_ADDR")
	override(&cfg.APIURL, "API_URL")
	if raw := strings.TrimSpace(os.Getenv("PRUNE_INTERVAL_HOURS")); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, fmt.Errorf("PRUNE_INTERVAL_HOURS: %w", err)
		}
		cfg.PruneHours = hours
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = DefaultDatabaseURL
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ReportTime == "" {
		cfg.ReportTime = DefaultReportTime
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.PruneHours < 0 {
		return cfg, fmt.Errorf("PRUNE_INTERVAL_HOURS must not be negative")
	}
	if cfg.PruneHours == 0 {
		cfg.PruneHours = 24
	}
	cfg.PruneInterval = time.Duration(cfg.PruneHours) * time.Hour

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %q not found", path)
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func override(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
