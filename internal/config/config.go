package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the default config file name inside a project directory.
const FileName = "spending.yaml"

// Environment variables that override the file.
const (
	EnvConfig   = "SPENDING_CONFIG"
	EnvUser     = "SPENDING_USER"
	EnvDatabase = "SPENDING_DB"
	EnvLogLevel = "SPENDING_LOG_LEVEL"
)

// Config represents the top-level spending.yaml configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Import   ImportConfig   `yaml:"import"`
	User     string         `yaml:"user"`
	LogLevel string         `yaml:"log_level"`
}

// DatabaseConfig locates the SQLite file. An empty path keeps data in memory.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ImportConfig controls the statement import directory.
type ImportConfig struct {
	Dir      string `yaml:"dir"`
	LogFile  string `yaml:"log_file"`
	Encoding string `yaml:"encoding"` // auto, utf-8 or windows-1250
}

// Load reads a spending.yaml file from disk. Missing keys keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default(user string) *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "spending.db",
		},
		Import: ImportConfig{
			Dir:      "import",
			LogFile:  filepath.Join("logs", "import-log.csv"),
			Encoding: "auto",
		},
		User:     user,
		LogLevel: "info",
	}
}

// ApplyEnv overrides settings from SPENDING_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvUser); v != "" {
		c.User = v
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Resolve makes p absolute relative to baseDir, the directory of the config file.
func Resolve(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
