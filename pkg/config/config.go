// Package config loads the on-disk settings for a raftstore node from a
// YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StorageConfig is the top-level configuration for one node's storage
// backend.
type StorageConfig struct {
	NodeID  string        `yaml:"nodeId"`
	DataDir string        `yaml:"dataDir"`
	Log     LogConfig     `yaml:"log,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// LogConfig controls pkg/log's behavior.
type LogConfig struct {
	Level string `yaml:"level,omitempty"`
	JSON  bool   `yaml:"json,omitempty"`
}

// MetricsConfig controls where pkg/metrics exposes its Prometheus
// endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Addr    string `yaml:"addr,omitempty"`
}

// Default returns a StorageConfig usable for a single-node development
// instance rooted at dataDir.
func Default(nodeID, dataDir string) StorageConfig {
	return StorageConfig{
		NodeID:  nodeID,
		DataDir: dataDir,
		Log:     LogConfig{Level: "info"},
		Metrics: MetricsConfig{Enabled: true, Addr: ":9090"},
	}
}

// Load reads and parses a StorageConfig from a YAML file at path.
func Load(path string) (StorageConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return StorageConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg StorageConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return StorageConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return StorageConfig{}, err
	}
	return cfg, nil
}

// Validate checks that the required fields are present.
func (c StorageConfig) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("config: nodeId is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: dataDir is required")
	}
	return nil
}
