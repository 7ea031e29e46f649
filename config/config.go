// Package config loads the hrstore YAML configuration file.
//
// Example:
//
//	backend: sqlite
//	path: /var/lib/hrstore/hr.db
//	log_level: debug
//	allotments:
//	  annual: 25
//	  sick: 10
//	  personal: 3
//	backup:
//	  dir: /var/backups/hrstore
//	  s3:
//	    bucket: hr-backups
//	    prefix: nightly
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/warp/hrstore/backup"
	"github.com/warp/hrstore/dashboard"
	"github.com/warp/hrstore/hr"
)

// EnvFile names the config file used when none is given explicitly.
const EnvFile = "HRSTORE_CONFIG"

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config is the decoded configuration file.
type Config struct {
	Backend    string     `yaml:"backend"`
	Path       string     `yaml:"path"`
	LogLevel   string     `yaml:"log_level"`
	Allotments Allotments `yaml:"allotments"`
	Backup     Backup     `yaml:"backup"`
}

// Allotments overrides the yearly leave entitlement per type. Unset
// fields keep the dashboard defaults.
type Allotments struct {
	Annual   *float64 `yaml:"annual"`
	Sick     *float64 `yaml:"sick"`
	Personal *float64 `yaml:"personal"`
}

// Backup configures where `hrstore backup` writes when no flag says otherwise.
type Backup struct {
	Dir string          `yaml:"dir"`
	S3  backup.S3Config `yaml:"s3"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{Backend: BackendFile, LogLevel: "info"}
}

// Load reads path, or the file named by $HRSTORE_CONFIG when path is
// empty. With neither set it returns Default.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(EnvFile)
	}
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that have a closed set of choices.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("backend %q must be %q or %q", c.Backend, BackendFile, BackendSQLite)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	for name, v := range map[string]*float64{
		"annual": c.Allotments.Annual, "sick": c.Allotments.Sick, "personal": c.Allotments.Personal,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("allotments.%s cannot be negative", name)
		}
	}
	return nil
}

// DataPath returns Path, or the backend's default location.
func (c Config) DataPath() string {
	switch {
	case c.Path != "":
		return c.Path
	case c.Backend == BackendSQLite:
		return "data/hrstore.db"
	default:
		return "data/hrstore.json"
	}
}

// Level parses LogLevel.
func (c Config) Level() (zapcore.Level, error) {
	if c.LogLevel == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(c.LogLevel)
}

// LeaveAllotments merges the configured overrides onto the defaults.
func (c Config) LeaveAllotments() dashboard.Allotments {
	out := dashboard.DefaultAllotments()
	for t, v := range map[hr.LeaveType]*float64{
		hr.LeaveAnnual: c.Allotments.Annual, hr.LeaveSick: c.Allotments.Sick, hr.LeavePersonal: c.Allotments.Personal,
	} {
		if v != nil {
			out[t] = decimal.NewFromFloat(*v)
		}
	}
	return out
}
