package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/tidyloom-cli/internal/clean"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Detection and cleaning heuristics
	SampleSize            int     `mapstructure:"sample_size" yaml:"sample_size"`
	MinMatches            int     `mapstructure:"min_matches" yaml:"min_matches"`
	NumericSampleFraction float64 `mapstructure:"numeric_sample_fraction" yaml:"numeric_sample_fraction"`
	DateSampleFraction    float64 `mapstructure:"date_sample_fraction" yaml:"date_sample_fraction"`
	DateCommitFraction    float64 `mapstructure:"date_commit_fraction" yaml:"date_commit_fraction"`
	IQRMultiplier         float64 `mapstructure:"iqr_multiplier" yaml:"iqr_multiplier"`
	NumericFill           string  `mapstructure:"numeric_fill" yaml:"numeric_fill"`
	TextFill              string  `mapstructure:"text_fill" yaml:"text_fill"`
	StripUnits            bool    `mapstructure:"strip_units" yaml:"strip_units"`
	DayFirst              bool    `mapstructure:"day_first" yaml:"day_first"`
	NameCollisions        string  `mapstructure:"name_collisions" yaml:"name_collisions"`
	DetectWorkers         int     `mapstructure:"detect_workers" yaml:"detect_workers"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" validate:"oneof=text json"`

	// Run history
	HistoryEnabled bool   `mapstructure:"history_enabled" yaml:"history_enabled"`
	HistoryDriver  string `mapstructure:"history_driver" yaml:"history_driver" validate:"oneof=sqlite pgx postgres sqlserver"`
	HistoryDSN     string `mapstructure:"history_dsn" yaml:"history_dsn"`

	RecipesDir string `mapstructure:"recipes_dir" yaml:"recipes_dir"`

	// HTTP server
	ServerAddr      string  `mapstructure:"server_addr" yaml:"server_addr" validate:"required"`
	ServerRateLimit float64 `mapstructure:"server_rate_limit" yaml:"server_rate_limit" validate:"gte=0"`
	ServerMaxBodyMB int     `mapstructure:"server_max_body_mb" yaml:"server_max_body_mb" validate:"min=1,max=1024"`
}

var defaults = map[string]any{
	"sample_size":             30,
	"min_matches":             3,
	"numeric_sample_fraction": 0.5,
	"date_sample_fraction":    0.1,
	"date_commit_fraction":    0.05,
	"iqr_multiplier":          1.5,
	"numeric_fill":            "median",
	"text_fill":               "mode",
	"strip_units":             true,
	"day_first":               false,
	"name_collisions":         "suffix",
	"detect_workers":          4,
	"log_level":               "info",
	"log_format":              "text",
	"history_enabled":         true,
	"history_driver":          "sqlite",
	"history_dsn":             "",
	"recipes_dir":             "",
	"server_addr":             "127.0.0.1:8080",
	"server_rate_limit":       5.0,
	"server_max_body_mb":      32,
}

// Keys lists every configuration key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dir returns ~/.tidyloom.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".tidyloom"), nil
}

// Save writes the value of key from c into the cfgFile path, keeping whatever
// else the file already holds. If cfgFile is empty it writes to
// ~/.tidyloom/config.yaml, creating the directory if necessary. Only the named
// key is persisted so env overrides and derived paths never land in the file.
func Save(c *Global, cfgFile, key string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}

	current := map[string]any{}
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &current); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if current == nil {
			current = map[string]any{}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config: %w", err)
	}

	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	var all map[string]any
	if err := yaml.Unmarshal(b, &all); err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	val, ok := all[key]
	if !ok {
		return fmt.Errorf("unknown key %q", key)
	}
	current[key] = val

	out, err := yaml.Marshal(current)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("TIDYLOOM")
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.RecipesDir == "" {
		c.RecipesDir = filepath.Join(dir, "recipes")
	}
	if c.HistoryDSN == "" && c.HistoryDriver == "sqlite" {
		c.HistoryDSN = filepath.Join(dir, "history.db")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

var validate = validator.New()

// Validate checks the non-engine keys with struct tags and the engine keys
// through clean.Options.
func (c *Global) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s: invalid value %v", fe.Field(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(parts, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.CleanOptions().Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// CleanOptions maps the heuristic keys onto engine options.
func (c *Global) CleanOptions() clean.Options {
	return clean.Options{
		SampleSize:            c.SampleSize,
		MinMatches:            c.MinMatches,
		NumericSampleFraction: c.NumericSampleFraction,
		DateSampleFraction:    c.DateSampleFraction,
		DateCommitFraction:    c.DateCommitFraction,
		IQRMultiplier:         c.IQRMultiplier,
		NumericFill:           clean.NumericFill(c.NumericFill),
		TextFill:              clean.TextFill(c.TextFill),
		StripUnits:            c.StripUnits,
		DayFirst:              c.DayFirst,
		NameCollisions:        clean.CollisionPolicy(c.NameCollisions),
		DetectWorkers:         c.DetectWorkers,
	}
}

// Set assigns one key from its string form and re-validates. The receiver
// is left unchanged on error.
func (c *Global) Set(key, val string) error {
	next := *c
	var err error
	switch key {
	case "sample_size":
		next.SampleSize, err = strconv.Atoi(val)
	case "min_matches":
		next.MinMatches, err = strconv.Atoi(val)
	case "detect_workers":
		next.DetectWorkers, err = strconv.Atoi(val)
	case "server_max_body_mb":
		next.ServerMaxBodyMB, err = strconv.Atoi(val)
	case "numeric_sample_fraction":
		next.NumericSampleFraction, err = strconv.ParseFloat(val, 64)
	case "date_sample_fraction":
		next.DateSampleFraction, err = strconv.ParseFloat(val, 64)
	case "date_commit_fraction":
		next.DateCommitFraction, err = strconv.ParseFloat(val, 64)
	case "iqr_multiplier":
		next.IQRMultiplier, err = strconv.ParseFloat(val, 64)
	case "server_rate_limit":
		next.ServerRateLimit, err = strconv.ParseFloat(val, 64)
	case "strip_units":
		next.StripUnits, err = strconv.ParseBool(val)
	case "day_first":
		next.DayFirst, err = strconv.ParseBool(val)
	case "history_enabled":
		next.HistoryEnabled, err = strconv.ParseBool(val)
	case "numeric_fill":
		next.NumericFill = strings.ToLower(val)
	case "text_fill":
		next.TextFill = strings.ToLower(val)
	case "name_collisions":
		next.NameCollisions = strings.ToLower(val)
	case "log_level":
		next.LogLevel = strings.ToLower(val)
	case "log_format":
		next.LogFormat = strings.ToLower(val)
	case "history_driver":
		next.HistoryDriver = strings.ToLower(val)
	case "history_dsn":
		next.HistoryDSN = val
	case "recipes_dir":
		next.RecipesDir = val
	case "server_addr":
		next.ServerAddr = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q", key, val)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
