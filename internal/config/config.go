// Package config resolves runtime settings from the env file, an optional
// YAML file and environment overrides, in that order of precedence (lowest
// first).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	AppName        = "masa-app"
	EnvFileName    = "config.env"
	DefaultYAML    = "masa.yaml"
	DefaultDBName  = "masa.db"
	DefaultCamera  = "webcam:0"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Camera is one configured video source.
type Camera struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Facing string `yaml:"facing"`
}

// Analysis configures the vision model call.
type Analysis struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float32 `yaml:"temperature"`
}

type Config struct {
	Cameras  []Camera `yaml:"cameras"`
	Analysis Analysis `yaml:"analysis"`

	DBPath   string        `yaml:"db_path"`
	StoreKey string        `yaml:"-"`
	LockDir  string        `yaml:"lock_dir"`
	LogLevel zerolog.Level `yaml:"-"`
}

// Dir returns the application's config directory, creating it if needed.
func Dir() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	dir := filepath.Join(configBase, AppName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// EnvFilePath returns the path of config.env.
func EnvFilePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, EnvFileName), nil
}

// LoadEnvFile loads environment variables from config.env in the user's
// config directory. Errors are ignored since the file may not exist.
func LoadEnvFile() {
	path, err := EnvFilePath()
	if err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// Load builds a Config from CONFIG_PATH (default masa.yaml, optional) and the
// MASA_* environment variables.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = DefaultYAML
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, cfg.validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("MASA_PROVIDER"); v != "" {
		c.Analysis.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("MASA_MODEL"); v != "" {
		c.Analysis.Model = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.Analysis.BaseURL = v
	}
	if v := os.Getenv("MASA_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("MASA_TEMPERATURE must be a number: %w", err)
		}
		c.Analysis.Temperature = float32(t)
	}
	if v := os.Getenv("MASA_CAMERA"); v != "" {
		c.Cameras = []Camera{{Name: "env", Source: v, Facing: "environment"}}
	}
	if v := os.Getenv("MASA_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("MASA_LOCK_DIR"); v != "" {
		c.LockDir = v
	}
	c.StoreKey = os.Getenv("MASA_STORE_KEY")

	c.LogLevel = zerolog.InfoLevel
	if v := os.Getenv("MASA_LOG_LEVEL"); v != "" {
		level, err := zerolog.ParseLevel(strings.ToLower(v))
		if err != nil {
			return fmt.Errorf("MASA_LOG_LEVEL: %w", err)
		}
		c.LogLevel = level
	}
	return nil
}

func (c *Config) applyDefaults() error {
	if c.Analysis.Provider == "" {
		c.Analysis.Provider = ProviderOpenAI
	}
	if c.Analysis.Temperature == 0 {
		c.Analysis.Temperature = 0.2
	}
	if len(c.Cameras) == 0 {
		c.Cameras = []Camera{{Name: "default", Source: DefaultCamera, Facing: "environment"}}
	}
	for i := range c.Cameras {
		if c.Cameras[i].Name == "" {
			c.Cameras[i].Name = fmt.Sprintf("camera-%d", i)
		}
	}
	if c.DBPath == "" || c.LockDir == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if c.DBPath == "" {
			c.DBPath = filepath.Join(dir, DefaultDBName)
		}
		if c.LockDir == "" {
			c.LockDir = filepath.Join(dir, "locks")
		}
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Analysis.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown provider %q (want %s or %s)", c.Analysis.Provider, ProviderOpenAI, ProviderGemini)
	}
	for _, cam := range c.Cameras {
		if strings.TrimSpace(cam.Source) == "" {
			return fmt.Errorf("camera %q has no source", cam.Name)
		}
	}
	return nil
}
