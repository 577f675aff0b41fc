package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lumenlabs/agentchat/internal/services"
)

type config struct {
	BackendURL string `yaml:"backendURL"`
	APIKey     string `yaml:"apiKey"`
	CachePath  string `yaml:"cachePath"`
	LogLevel   string `yaml:"logLevel"`
}

func loadConfig() (config, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return config{}, fmt.Errorf("error getting user config dir: %w", err)
	}
	appDir := filepath.Join(cfgDir, "agentchat")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return config{}, fmt.Errorf("error creating config directory: %w", err)
	}

	cfgFile, err := os.Open(filepath.Join(appDir, "config.yaml"))
	if err != nil {
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer cfgFile.Close()

	cfg := config{}
	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}

	if cfg.BackendURL == "" {
		return config{}, fmt.Errorf("backendURL is required")
	}
	if cfg.CachePath == "" {
		cfg.CachePath = filepath.Join(appDir, "cache.db")
	}

	return cfg, nil
}

// tokenProvider returns the configured API key, falling back to the AGENTCHAT_API_KEY
// environment variable. Token refresh is the backend session's concern, not ours.
func (c config) tokenProvider() services.TokenProvider {
	return func(_ context.Context) (string, error) {
		key := c.APIKey
		if key == "" {
			key = os.Getenv("AGENTCHAT_API_KEY")
		}
		if key == "" {
			return "", fmt.Errorf("no API key configured")
		}
		return key, nil
	}
}

func (c config) slogLevel() slog.Level {
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
