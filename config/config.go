// Package config loads the configuration of a session factory from YAML.
//
// Configuration can be loaded from:
//   - A YAML configuration file
//   - Environment variables overriding the connection settings
//   - Programmatic defaults
//
// Environment Variables:
//
//	SQM_DRIVER      - database/sql driver name
//	SQM_DIALECT     - SQL dialect (mysql, postgres, sqlite)
//	SQM_DSN         - data source name
//	SQM_STATISTICS  - enable statistics collection (true/false)
//	SQM_LOG_LEVEL   - log level (debug, info, warn, error)
//
// Example file:
//
//	driver: pgx
//	dialect: postgres
//	dsn: postgres://localhost/shop
//	statistics: true
//	cache:
//	  plans: 4096
//	mutation:
//	  strategy: table
//	  table:
//	    kind: global
//	    after_use: none
//	mapping_file: mapping.yaml
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/sqm/dialect"
	"github.com/syssam/sqm/query/mutation"
)

// Mutation strategies.
const (
	StrategyInline = "inline"
	StrategyTable  = "table"
)

// Config is the configuration of a session factory.
type Config struct {
	// Driver is the database/sql driver name, e.g. "sqlite", "pgx".
	// Defaults to the dialect name.
	Driver  string `yaml:"driver"`
	Dialect string `yaml:"dialect"`
	DSN     string `yaml:"dsn"`

	// Statistics enables statistics collection at startup. It can be
	// toggled at runtime by reloading the file.
	Statistics bool `yaml:"statistics"`

	// LogLevel is one of debug, info, warn or error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	// SlowQuery is the threshold above which statements are logged as slow.
	SlowQuery time.Duration `yaml:"slow_query"`

	Cache    CacheConfig    `yaml:"cache"`
	Mutation MutationConfig `yaml:"mutation"`

	// MappingFile is a mapping loaded in place of Mapping. Relative paths
	// are resolved from the directory of the configuration file.
	MappingFile string  `yaml:"mapping_file"`
	Mapping     Mapping `yaml:"mapping"`
}

// CacheConfig sizes the query interpretation caches. Zero keeps the default.
type CacheConfig struct {
	Plans            int `yaml:"plans"`
	Interpretations  int `yaml:"interpretations"`
	NativeParameters int `yaml:"native_parameters"`
}

// MutationConfig selects the multi-table mutation strategy.
type MutationConfig struct {
	// Strategy is "inline" (default) or "table".
	Strategy string      `yaml:"strategy"`
	Table    TableConfig `yaml:"table"`
}

// TableConfig configures the holding tables of the table strategy.
type TableConfig struct {
	// Kind is "local" (default) or "global".
	Kind string `yaml:"kind"`
	// BeforeUse is "create" (default) or "none".
	BeforeUse string `yaml:"before_use"`
	// AfterUse is "clean" (default), "drop" or "none".
	AfterUse      string `yaml:"after_use"`
	SessionColumn bool   `yaml:"session_column"`
	Prefix        string `yaml:"prefix"`
}

// Default returns a configuration for an in-memory SQLite database.
func Default() *Config {
	return &Config{
		Driver:   "sqlite",
		Dialect:  dialect.SQLite,
		DSN:      "file::memory:?cache=shared",
		LogLevel: "info",
		Mutation: MutationConfig{Strategy: StrategyInline},
	}
}

// Load reads the configuration file at path, applies the environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if c.MappingFile != "" {
		mf := c.MappingFile
		if !filepath.IsAbs(mf) {
			mf = filepath.Join(filepath.Dir(path), mf)
		}
		m, err := LoadMapping(mf)
		if err != nil {
			return nil, err
		}
		c.Mapping = *m
	}
	c.ApplyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML configuration over the defaults. Unknown keys are
// rejected.
func Parse(data []byte) (*Config, error) {
	c := Default()
	c.Driver = ""
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if c.Driver == "" {
		c.Driver = c.Dialect
	}
	return c, nil
}

// ApplyEnv overrides the connection settings from SQM_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SQM_DRIVER"); v != "" {
		c.Driver = v
	}
	if v := os.Getenv("SQM_DIALECT"); v != "" {
		c.Dialect = v
	}
	if v := os.Getenv("SQM_DSN"); v != "" {
		c.DSN = v
	}
	if v := os.Getenv("SQM_STATISTICS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Statistics = b
		}
	}
	if v := os.Getenv("SQM_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the settings that do not depend on the database.
func (c *Config) Validate() error {
	var errs []error
	if !dialect.Valid(c.Dialect) {
		errs = append(errs, fmt.Errorf("unknown dialect %q", c.Dialect))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	for name, n := range map[string]int{
		"cache.plans":             c.Cache.Plans,
		"cache.interpretations":   c.Cache.Interpretations,
		"cache.native_parameters": c.Cache.NativeParameters,
	} {
		if n < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	switch c.Mutation.Strategy {
	case "", StrategyInline:
	case StrategyTable:
		if _, err := c.TableBasedConfig(); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mutation strategy %q", c.Mutation.Strategy))
	}
	return errors.Join(errs...)
}

// Level returns the slog level of LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// TableBasedConfig returns the holding table settings of the table strategy.
func (c *Config) TableBasedConfig() (mutation.TableBasedConfig, error) {
	t := c.Mutation.Table
	cfg := mutation.TableBasedConfig{
		Dialect:       c.Dialect,
		SessionColumn: t.SessionColumn,
		Prefix:        t.Prefix,
	}
	switch strings.ToLower(t.Kind) {
	case "", "local":
		cfg.Kind = mutation.LocalTemporary
	case "global":
		cfg.Kind = mutation.GlobalPersistent
	default:
		return cfg, fmt.Errorf("mutation.table.kind: unknown kind %q", t.Kind)
	}
	switch strings.ToLower(t.BeforeUse) {
	case "", "create":
		cfg.BeforeUse = mutation.CreateIfMissing
	case "none":
		cfg.BeforeUse = mutation.BeforeUseNone
	default:
		return cfg, fmt.Errorf("mutation.table.before_use: unknown action %q", t.BeforeUse)
	}
	switch strings.ToLower(t.AfterUse) {
	case "", "clean":
		cfg.AfterUse = mutation.AfterUseClean
	case "drop":
		cfg.AfterUse = mutation.AfterUseDrop
	case "none":
		cfg.AfterUse = mutation.AfterUseNone
	default:
		return cfg, fmt.Errorf("mutation.table.after_use: unknown action %q", t.AfterUse)
	}
	return cfg, nil
}
