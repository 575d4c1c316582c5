// Package config loads the client's runtime settings from an optional YAML
// file, a .env file, and environment variables, in that order of increasing
// precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the CLI needs to talk to the backend.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
}

type APIConfig struct {
	// BaseURL is the backend API root, including the /api prefix.
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type SessionConfig struct {
	// File is where the session record is persisted between runs.
	File string `yaml:"file"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadFromFile loads settings from the given YAML file. A missing file is not
// an error; defaults and environment variables still apply.
func LoadFromFile(path string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config yaml: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg = applyDefaults(cfg)
	cfg = applyEnv(cfg)
	return cfg, nil
}

// DefaultPath returns the conventional config file location under the user's
// config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "pocketcli.yaml"
	}
	return filepath.Join(dir, "pocketcli", "config.yaml")
}

func applyDefaults(cfg Config) Config {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:8080/api"
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 15 * time.Second
	}
	if cfg.Session.File == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		cfg.Session.File = filepath.Join(dir, "pocketcli", "session.json")
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	return cfg
}

func applyEnv(cfg Config) Config {
	if val := os.Getenv("POCKET_API_URL"); val != "" {
		cfg.API.BaseURL = val
	}
	if val := os.Getenv("POCKET_API_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.API.Timeout = d
		}
	}
	if val := os.Getenv("POCKET_SESSION_FILE"); val != "" {
		cfg.Session.File = val
	}
	if val := os.Getenv("POCKET_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := os.Getenv("POCKET_LOG_FORMAT"); val != "" {
		cfg.Log.Format = val
	}
	return cfg
}
