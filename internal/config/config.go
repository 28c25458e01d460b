// Package config loads debtwise configuration from an optional YAML
// file with environment-variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable the core exposes. Zero values fall back
// to Default().
type Config struct {
	// DBPath locates the SQLite event log.
	DBPath string `yaml:"db_path" env:"DEBTWISE_DB"`

	// RulesPath optionally overrides alert rule thresholds (YAML).
	RulesPath string `yaml:"rules_path" env:"DEBTWISE_RULES"`

	// AnnualIncome feeds the phase classifier.
	AnnualIncome float64 `yaml:"annual_income" env:"DEBTWISE_ANNUAL_INCOME"`

	// Epsilon is the tolerated reconciliation drift in currency units.
	Epsilon float64 `yaml:"epsilon" env:"DEBTWISE_EPSILON"`

	// WarnDrift escalates a reconciliation alert from INFO to WARNING.
	WarnDrift float64 `yaml:"warn_drift" env:"DEBTWISE_WARN_DRIFT"`

	// MinAnnualSavings is the opportunity significance threshold.
	MinAnnualSavings float64 `yaml:"min_annual_savings" env:"DEBTWISE_MIN_ANNUAL_SAVINGS"`

	// MatchConfidence is the fuzzy account-match auto-resolve threshold.
	MatchConfidence float64 `yaml:"match_confidence" env:"DEBTWISE_MATCH_CONFIDENCE"`

	// MaxAttempts bounds append retries on conflicts.
	MaxAttempts int `yaml:"max_attempts" env:"DEBTWISE_MAX_ATTEMPTS"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"DEBTWISE_LOG_LEVEL"`

	// MetricsAddr, when set, serves Prometheus metrics on this address
	// for long-running commands.
	MetricsAddr string `yaml:"metrics_addr" env:"DEBTWISE_METRICS_ADDR"`
}

// Default returns the standard configuration.
func Default() Config {
	return Config{
		DBPath:           "debtwise.db",
		Epsilon:          0.01,
		WarnDrift:        50,
		MinAnnualSavings: 100,
		MatchConfidence:  0.85,
		MaxAttempts:      5,
		LogLevel:         "info",
	}
}

// Load builds the configuration: defaults, then the YAML file (when
// path is non-empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps LogLevel onto a slog.Level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
