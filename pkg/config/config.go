package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config application configuration
type Config struct {
	Result ResultConfig `json:"result"`
	Store  StoreConfig  `json:"store"`
	Log    LogConfig    `json:"log"`
}

// ResultConfig result materialization configuration
type ResultConfig struct {
	// MaxMemoryRows rows a result may buffer in memory before spilling
	MaxMemoryRows int `json:"max_memory_rows"`
}

// StoreConfig spill store configuration
type StoreConfig struct {
	// Backend spill backend name ("badger" or "temptable")
	Backend string `json:"backend"`
	// SpillDir directory for spilled results
	SpillDir string `json:"spill_dir"`
}

// LogConfig logging configuration
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // json or console
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Result: ResultConfig{
			MaxMemoryRows: 10000,
		},
		Store: StoreConfig{
			Backend: "badger",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from a JSON file, applying defaults for
// anything the file does not set.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}
