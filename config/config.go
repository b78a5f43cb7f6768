package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/turtle/backtest"
	"github.com/rustyeddy/turtle/market"
	"github.com/rustyeddy/turtle/risk"
	"github.com/rustyeddy/turtle/strategy"
)

// Config represents the complete backtest configuration
type Config struct {
	Portfolio   PortfolioConfig   `json:"portfolio" yaml:"portfolio"`
	Risk        risk.Limits       `json:"risk" yaml:"risk"`
	Signals     []strategy.Config `json:"signals" yaml:"signals"`
	Data        DataConfig        `json:"data" yaml:"data"`
	Journal     JournalConfig     `json:"journal" yaml:"journal"`
	MetricsFile string            `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty"`
	LogLevel    string            `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// PortfolioConfig contains account initialization parameters
type PortfolioConfig struct {
	Value      float64 `json:"value" yaml:"value"`
	AnnualDays int     `json:"annual_days" yaml:"annual_days"`
}

// DataConfig says where bars and instrument parameters come from.
// Exactly one of Bars and ClickHouse is set.
type DataConfig struct {
	Bars        string                   `json:"bars,omitempty" yaml:"bars,omitempty"` // CSV, optionally .xz
	ClickHouse  *market.ClickHouseConfig `json:"clickhouse,omitempty" yaml:"clickhouse,omitempty"`
	Instruments string                   `json:"instruments" yaml:"instruments"`
	From        string                   `json:"from,omitempty" yaml:"from,omitempty"` // RFC3339 or 2006-01-02
	To          string                   `json:"to,omitempty" yaml:"to,omitempty"`
}

// Range parses From and To. Empty values come back as zero times.
func (d DataConfig) Range() (from, to time.Time, err error) {
	if d.From != "" {
		if from, err = market.ParseTime(d.From); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("data.from: %w", err)
		}
	}
	if d.To != "" {
		if to, err = market.ParseTime(d.To); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("data.to: %w", err)
		}
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("data.from must be before data.to")
	}
	return from, to, nil
}

// Journal types
const (
	JournalNone     = "none"
	JournalCSV      = "csv"
	JournalSQLite   = "sqlite"
	JournalPostgres = "postgres"
)

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type    string `json:"type" yaml:"type"`                             // none|csv|sqlite|postgres
	Dir     string `json:"dir,omitempty" yaml:"dir,omitempty"`           // csv
	DBPath  string `json:"db_path,omitempty" yaml:"db_path,omitempty"`   // sqlite
	DSN     string `json:"dsn,omitempty" yaml:"dsn,omitempty"`           // postgres
	OrgPath string `json:"org_path,omitempty" yaml:"org_path,omitempty"` // optional Org report
}

// LoadFromFile loads configuration from a file (JSON or YAML)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Defaults fill what the file leaves out, except the data source.
	cfg := Default()
	cfg.Data = DataConfig{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		cfg.Data = DataConfig{}
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (YAML or JSON based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Portfolio.Value <= 0 {
		return fmt.Errorf("portfolio.value must be positive")
	}
	if c.Portfolio.AnnualDays < 0 {
		return fmt.Errorf("portfolio.annual_days must not be negative")
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if len(c.Signals) == 0 {
		return fmt.Errorf("at least one signal is required")
	}
	for i, sc := range c.Signals {
		if err := sc.Validate(); err != nil {
			return fmt.Errorf("signals[%d]: %w", i, err)
		}
	}

	if c.Data.Instruments == "" {
		return fmt.Errorf("data.instruments is required")
	}
	if (c.Data.Bars == "") == (c.Data.ClickHouse == nil) {
		return fmt.Errorf("exactly one of data.bars and data.clickhouse is required")
	}
	if ch := c.Data.ClickHouse; ch != nil && (ch.Addr == "" || ch.Table == "") {
		return fmt.Errorf("data.clickhouse addr and table are required")
	}
	if _, _, err := c.Data.Range(); err != nil {
		return err
	}

	switch c.Journal.Type {
	case "", JournalNone:
	case JournalCSV:
		if c.Journal.Dir == "" {
			return fmt.Errorf("journal dir required for CSV type")
		}
	case JournalSQLite:
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case JournalPostgres:
		if c.Journal.DSN == "" {
			return fmt.Errorf("journal dsn required for Postgres type")
		}
	default:
		return fmt.Errorf("journal.type must be one of none, csv, sqlite, postgres")
	}

	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	return nil
}

// Engine returns the engine settings of c.
func (c *Config) Engine() backtest.EngineConfig {
	return backtest.EngineConfig{
		PortfolioValue: c.Portfolio.Value,
		AnnualDays:     c.Portfolio.AnnualDays,
		Limits:         c.Risk,
		Signals:        append([]strategy.Config(nil), c.Signals...),
	}
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	eng := backtest.DefaultEngineConfig()
	return &Config{
		Portfolio: PortfolioConfig{
			Value:      eng.PortfolioValue,
			AnnualDays: eng.AnnualDays,
		},
		Risk:    eng.Limits,
		Signals: eng.Signals,
		Data: DataConfig{
			Bars:        "./data/bars.csv",
			Instruments: "./data/instruments.csv",
		},
		Journal: JournalConfig{
			Type:   JournalSQLite,
			DBPath: "./turtle.sqlite",
		},
		LogLevel: "info",
	}
}
