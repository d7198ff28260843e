package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// GPUCard names one DRM card the telemetry loop samples.
type GPUCard struct {
	// Sysfs card id under /sys/class/drm, e.g. "card1".
	Card string `json:"card" yaml:"card" toml:"card"`
	// Display name, e.g. "RX 470".
	Name string `json:"name" yaml:"name" toml:"name"`
	// Vulkan device index the worker sees for this card.
	VulkanID int `json:"vulkan_id" yaml:"vulkan_id" toml:"vulkan_id"`
}

// CORS is the opt-in cross-origin policy for the HTTP API.
type CORS struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
}

// Config holds runtime parameters for the control plane.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	// Path to the llama-server executable.
	LlamaBin string `json:"llama_bin" yaml:"llama_bin" toml:"llama_bin"`
	// Worker cache directory, removed on every stop.
	CacheDir string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	// Slot save path handed to the worker.
	SlotsDir string `json:"slots_dir" yaml:"slots_dir" toml:"slots_dir"`
	// Persisted launch defaults file.
	SettingsFile string `json:"settings_file" yaml:"settings_file" toml:"settings_file"`
	// Seconds between telemetry samples (0 = default).
	TelemetryIntervalSeconds int `json:"telemetry_interval_seconds" yaml:"telemetry_interval_seconds" toml:"telemetry_interval_seconds"`
	// Cards to sample. Empty list enables PCI auto-discovery.
	GPUCards []GPUCard `json:"gpu_cards" yaml:"gpu_cards" toml:"gpu_cards"`
	CORS     CORS      `json:"cors" yaml:"cors" toml:"cors"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
