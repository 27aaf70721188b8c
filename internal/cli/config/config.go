// Package config loads schemalint settings from .schemalint.yml, the
// environment and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/schemalint/schemalint/internal/check"
	"github.com/schemalint/schemalint/internal/diagnostic"
)

const (
	// FileName is the configuration file looked up from the working directory upwards
	FileName = ".schemalint.yml"
	// EnvPrefix prefixes environment overrides, e.g. SCHEMALINT_SCHEMA_PATH
	EnvPrefix = "SCHEMALINT"

	DefaultSchemaPath  = "db/schema.rb"
	DefaultModelsPath  = "app/models"
	DefaultConcurrency = 4
)

// alternate spellings accepted when searching for the config file
var fileNames = []string{FileName, ".schemalint.yaml"}

// Config represents the schemalint configuration
type Config struct {
	SchemaPath  string   `mapstructure:"schema_path" yaml:"schema_path"`
	Paths       []string `mapstructure:"paths" yaml:"paths"`
	Exclude     []string `mapstructure:"exclude" yaml:"exclude,omitempty"`
	BaseClasses []string `mapstructure:"base_classes" yaml:"base_classes,omitempty"`
	Checks      []string `mapstructure:"checks" yaml:"checks,omitempty"`
	Severity    string   `mapstructure:"severity" yaml:"severity"`
	FailLevel   string   `mapstructure:"fail_level" yaml:"fail_level"`
	Concurrency int      `mapstructure:"concurrency" yaml:"concurrency"`

	// File is the config file that was read; empty when none was found
	File string `mapstructure:"-" yaml:"-"`
	// Root is the directory relative paths are resolved against
	Root string `mapstructure:"-" yaml:"-"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		SchemaPath:  DefaultSchemaPath,
		Paths:       []string{DefaultModelsPath},
		Severity:    diagnostic.Warning.String(),
		FailLevel:   diagnostic.Warning.String(),
		Concurrency: DefaultConcurrency,
	}
}

// Load reads the configuration. An explicit file must exist; otherwise
// .schemalint.yml is searched from dir upwards, and defaults are used when
// none is found. Environment variables override file values.
func Load(file, dir string) (*Config, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}

	v := viper.New()
	defaults := Default()
	v.SetDefault("schema_path", defaults.SchemaPath)
	v.SetDefault("paths", defaults.Paths)
	v.SetDefault("exclude", []string{})
	v.SetDefault("base_classes", []string{})
	v.SetDefault("checks", []string{})
	v.SetDefault("severity", defaults.Severity)
	v.SetDefault("fail_level", defaults.FailLevel)
	v.SetDefault("concurrency", defaults.Concurrency)

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	root := dir
	if file == "" {
		file = Find(dir)
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		root = filepath.Dir(file)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = file
	cfg.Root = root

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Find returns the nearest config file at or above dir, or ""
func Find(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		for _, name := range fileNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Validate checks the configuration for unusable values
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SchemaPath) == "" {
		return fmt.Errorf("%w: schema_path must not be empty", ErrInvalid)
	}
	if len(c.Paths) == 0 {
		return fmt.Errorf("%w: paths must list at least one file or directory", ErrInvalid)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalid, c.Concurrency)
	}
	if _, err := check.Select(c.Checks); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := diagnostic.ParseSeverity(c.Severity); err != nil {
		return fmt.Errorf("%w: severity: %w", ErrInvalid, err)
	}
	if _, err := diagnostic.ParseSeverity(c.FailLevel); err != nil {
		return fmt.Errorf("%w: fail_level: %w", ErrInvalid, err)
	}
	for _, pattern := range c.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("%w: exclude pattern %q: %w", ErrInvalid, pattern, err)
		}
	}
	return nil
}

// Resolve makes a configured path absolute against Root
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.Root == "" {
		return path
	}
	return filepath.Join(c.Root, path)
}

// ResolvedSchemaPath returns the schema path resolved against Root
func (c *Config) ResolvedSchemaPath() string {
	return c.Resolve(c.SchemaPath)
}

// ResolvedPaths returns the model paths resolved against Root
func (c *Config) ResolvedPaths() []string {
	paths := make([]string, len(c.Paths))
	for i, p := range c.Paths {
		paths[i] = c.Resolve(p)
	}
	return paths
}

// CheckOptions converts the configuration for check.NewChecker
func (c *Config) CheckOptions() check.Options {
	return check.Options{
		SchemaPath:  c.ResolvedSchemaPath(),
		BaseClasses: c.BaseClasses,
		Checks:      c.Checks,
		Severity:    c.Severity,
	}
}

// Write saves the configuration as yaml
func Write(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	content := append([]byte("# schemalint configuration\n"), data...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
