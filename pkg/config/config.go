// Package config loads service settings from an optional YAML file, the
// environment and a .env.local file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/japaniel/thirukkural/pkg/ai"
)

// DefaultFile is read when no --config flag is given.
const DefaultFile = "thirukkural.yaml"

// Config holds every setting the commands need.
type Config struct {
	Addr           string        `yaml:"addr"`
	DataPath       string        `yaml:"data"`
	DBPath         string        `yaml:"db"`
	APIKey         string        `yaml:"api_key"`
	Models         []string      `yaml:"models"`
	EnvFile        string        `yaml:"env_file"`
	Workers        int           `yaml:"workers"`
	ChatHistory    int           `yaml:"chat_history"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Dev            bool          `yaml:"dev"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Addr:           ":8080",
		DataPath:       "data/thirukkural.json",
		DBPath:         "thirukkural.db",
		Models:         append([]string(nil), ai.DefaultModels...),
		EnvFile:        ".env.local",
		Workers:        4,
		ChatHistory:    ai.DefaultMaxHistory,
		RequestTimeout: 60 * time.Second,
	}
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(string) (string, bool)

// Load reads path over the defaults, then applies the process environment.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	return LoadWith(path, os.LookupEnv)
}

// LoadWith is Load with an injectable environment.
func LoadWith(path string, env LookupFunc) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	if cfg.APIKey == "" && cfg.EnvFile != "" {
		key, err := ReadEnvFile(cfg.EnvFile, "GEMINI_API_KEY")
		if err != nil {
			return nil, err
		}
		cfg.APIKey = key
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(env LookupFunc) error {
	if v, ok := env("PORT"); ok && v != "" {
		c.Addr = ":" + v
	}
	if v, ok := env("THIRUKKURAL_ADDR"); ok && v != "" {
		c.Addr = v
	}
	if v, ok := env("THIRUKKURAL_DATA"); ok && v != "" {
		c.DataPath = v
	}
	if v, ok := env("THIRUKKURAL_DB"); ok && v != "" {
		c.DBPath = v
	}
	if v, ok := env("GEMINI_API_KEY"); ok && v != "" {
		c.APIKey = v
	}
	if v, ok := env("THIRUKKURAL_MODELS"); ok && v != "" {
		c.Models = splitList(v)
	}
	if v, ok := env("THIRUKKURAL_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("THIRUKKURAL_WORKERS: %w", err)
		}
		c.Workers = n
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects settings the commands cannot run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("config: addr must be set")
	}
	if c.DataPath == "" {
		return errors.New("config: data path must be set")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Workers)
	}
	if len(c.Models) == 0 {
		return errors.New("config: at least one model is required")
	}
	return nil
}

// ReadEnvFile returns the value of key from a dotenv file. A missing file
// yields an empty value.
func ReadEnvFile(path, key string) (string, error) {
	vars, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return vars[key], nil
}
