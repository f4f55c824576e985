package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PurchaseConfig stores parameters for the purchase engine.
type PurchaseConfig struct {
	AuthTimeoutSeconds int `yaml:"auth_timeout_seconds"`
}

// AuthTimeout returns the configured authorization wait bound, or zero
// when unset (the engine then applies its default).
func (p PurchaseConfig) AuthTimeout() time.Duration {
	return time.Duration(p.AuthTimeoutSeconds) * time.Second
}

// PlatformConfig selects and parameterizes the platform gateway adapter.
// Mode is "http" for a real platform endpoint or "sim" for the built-in
// test double.
type PlatformConfig struct {
	Mode        string `yaml:"mode"`
	BaseURL     string `yaml:"base_url"`
	SimDecision string `yaml:"sim_decision"`
	SimDelayMS  int    `yaml:"sim_delay_ms"`
}

type Config struct {
	App struct {
		Env string `yaml:"env"`
	} `yaml:"app"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Catalog struct {
		Path string `yaml:"path"`
	} `yaml:"catalog"`
	History struct {
		// Backend is "postgres" or "redis".
		Backend string `yaml:"backend"`
	} `yaml:"history"`
	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`
	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled          bool   `yaml:"enabled"`
		BootstrapServers string `yaml:"bootstrap_servers"`
		Topic            string `yaml:"topic"`
	} `yaml:"kafka"`
	Rewards struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"rewards"`
	Jaeger struct {
		Port string `yaml:"port"`
	} `yaml:"jaeger"`
	JWT struct {
		Secret string `yaml:"secret"`
	} `yaml:"jwt"`
	RateLimit struct {
		Limit         int `yaml:"limit"`
		WindowSeconds int `yaml:"window_seconds"`
	} `yaml:"rate_limit"`
	Platform PlatformConfig `yaml:"platform"`
	Purchase PurchaseConfig `yaml:"purchase"`
}

func Load(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Substitute environment variables into the raw YAML before parsing.
	expandedFile := os.ExpandEnv(string(file))

	if err := yaml.Unmarshal([]byte(expandedFile), config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
}
