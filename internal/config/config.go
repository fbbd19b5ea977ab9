// Package config loads server configuration from the environment, with
// an optional YAML file layered underneath it.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved set of settings recognised by the core.
// Unknown environment variables are ignored.
type Config struct {
	DNSBindAddr   string `yaml:"dns_bind_addr"`
	APIBindAddr   string `yaml:"api_bind_addr"`
	MetricsPort   string `yaml:"metrics_port"`
	InstanceID    string `yaml:"instance_id"`
	LogFormat     string `yaml:"log_format"`
	LogLevel      string `yaml:"log_level"`
	BackingFile   string `yaml:"backing_file"`
}

func defaults() Config {
	return Config{
		DNSBindAddr: "127.0.0.1:12312",
		APIBindAddr: "127.0.0.1:8080",
		MetricsPort: "9090",
		InstanceID:  "authdnsd-0",
		LogFormat:   "text",
		LogLevel:    "info",
		BackingFile: "records.txt",
	}
}

// fileOverlay is the shape of the optional CONFIG_FILE YAML document. It
// only fills in fields left at their default; direct environment
// variables always win over the file, which wins over built-in
// defaults.
type fileOverlay struct {
	DNSBindAddr string `yaml:"dns_bind_addr"`
	APIBindAddr string `yaml:"api_bind_addr"`
	MetricsPort string `yaml:"metrics_port"`
	InstanceID  string `yaml:"instance_id"`
	LogFormat   string `yaml:"log_format"`
	LogLevel    string `yaml:"log_level"`
	BackingFile string `yaml:"backing_file"`
}

// Load resolves configuration from defaults, an optional CONFIG_FILE
// YAML overlay, and environment variables, in that priority order
// (environment wins).
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		overlay, err := loadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("loading CONFIG_FILE %q: %w", path, err)
		}
		applyOverlay(&cfg, overlay)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string) (fileOverlay, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return fileOverlay{}, err
	}
	var f fileOverlay
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fileOverlay{}, err
	}
	return f, nil
}

func applyOverlay(cfg *Config, f fileOverlay) {
	if f.DNSBindAddr != "" {
		cfg.DNSBindAddr = f.DNSBindAddr
	}
	if f.APIBindAddr != "" {
		cfg.APIBindAddr = f.APIBindAddr
	}
	if f.MetricsPort != "" {
		cfg.MetricsPort = f.MetricsPort
	}
	if f.InstanceID != "" {
		cfg.InstanceID = f.InstanceID
	}
	if f.LogFormat != "" {
		cfg.LogFormat = f.LogFormat
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.BackingFile != "" {
		cfg.BackingFile = f.BackingFile
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DNS_BIND_ADDR"); v != "" {
		cfg.DNSBindAddr = v
	}
	if v := os.Getenv("API_BIND_ADDR"); v != "" {
		cfg.APIBindAddr = v
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		cfg.MetricsPort = v
	}
	// SERVER_ID and INSTANCE_ID are synonyms; SERVER_ID takes
	// precedence when both are set, matching the order they're listed
	// in the external configuration contract.
	if v := os.Getenv("INSTANCE_ID"); v != "" {
		cfg.InstanceID = v
	}
	if v := os.Getenv("SERVER_ID"); v != "" {
		cfg.InstanceID = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BACKING_FILE"); v != "" {
		cfg.BackingFile = v
	}
}
