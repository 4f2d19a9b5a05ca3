// Package config loads service configuration from an optional YAML file
// overridden by environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	survey "pcm-survey/internal/survey/domain"
)

// Config is the full service configuration.
type Config struct {
	HTTPAddr    string `yaml:"httpAddr"`
	StaticDir   string `yaml:"staticDir"`
	MaxUploadMB int    `yaml:"maxUploadMB"`

	Metric struct {
		MinDistance    float64 `yaml:"minDistance"`
		MinDenominator float64 `yaml:"minDenominator"`
		DisplayCap     float64 `yaml:"displayCap"`
	} `yaml:"metric"`
}

// MetricConfig converts the metric section to the domain policy.
func (c *Config) MetricConfig() survey.MetricConfig {
	return survey.MetricConfig{
		MinDistance:    c.Metric.MinDistance,
		MinDenominator: c.Metric.MinDenominator,
		DisplayCap:     c.Metric.DisplayCap,
	}
}

// Load reads the file named by PCM_CONFIG_FILE (when set), then applies
// environment overrides on top of it and the defaults.
func Load() (Config, error) {
	cfg := Config{HTTPAddr: ":8080", MaxUploadMB: 64}
	defaults := survey.DefaultMetricConfig()
	cfg.Metric.MinDistance = defaults.MinDistance
	cfg.Metric.MinDenominator = defaults.MinDenominator
	cfg.Metric.DisplayCap = defaults.DisplayCap

	if path := os.Getenv("PCM_CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.StaticDir = getenvDefault("STATIC_DIR", cfg.StaticDir)
	cfg.MaxUploadMB = getenvIntDefault("MAX_UPLOAD_MB", cfg.MaxUploadMB)
	cfg.Metric.MinDistance = getenvFloatDefault("METRIC_MIN_DISTANCE", cfg.Metric.MinDistance)
	cfg.Metric.MinDenominator = getenvFloatDefault("METRIC_MIN_DENOMINATOR", cfg.Metric.MinDenominator)
	cfg.Metric.DisplayCap = getenvFloatDefault("METRIC_DISPLAY_CAP", cfg.Metric.DisplayCap)

	if cfg.Metric.MinDistance <= 0 {
		return cfg, fmt.Errorf("config: metric minDistance must be positive")
	}
	if cfg.Metric.MinDenominator <= 0 {
		return cfg, fmt.Errorf("config: metric minDenominator must be positive")
	}
	if cfg.MaxUploadMB <= 0 {
		return cfg, fmt.Errorf("config: maxUploadMB must be positive")
	}
	return cfg, nil
}

// MaxUploadBytes converts the upload limit to bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
