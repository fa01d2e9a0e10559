package common

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultCoordinatorAddr = "localhost:7170"
	DefaultReplicaPortBase = 7171
)

// Config describes a cluster: one coordinator plus N replicas.
type Config struct {
	CoordinatorAddr string   `yaml:"coordinator_addr"`
	Replicas        []string `yaml:"replicas"`
	DataDir         string   `yaml:"data_dir"`
	LogDir          string   `yaml:"log_dir"`
	StorageMode     string   `yaml:"storage_mode"`
	MetricsAddr     string   `yaml:"metrics_addr"`
}

// DefaultConfig returns a localhost cluster with replicaCount replicas on
// consecutive ports.
func DefaultConfig(replicaCount int) Config {
	replicas := make([]string, replicaCount)
	for i := range replicas {
		replicas[i] = DefaultReplicaAddr(i)
	}
	return Config{
		CoordinatorAddr: DefaultCoordinatorAddr,
		Replicas:        replicas,
		DataDir:         "data",
		LogDir:          "logs",
		StorageMode:     ModeDisc.String(),
	}
}

func DefaultReplicaAddr(i int) string {
	return fmt.Sprintf("localhost:%d", DefaultReplicaPortBase+i)
}

// LoadConfig reads a YAML cluster config, filling unset fields with defaults.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig(0)
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.CoordinatorAddr == "" {
		return fmt.Errorf("config: coordinator_addr is required")
	}
	if c.StorageMode != "" {
		if _, ok := ParseStorageMode(c.StorageMode); !ok {
			return fmt.Errorf("config: unknown storage_mode %q", c.StorageMode)
		}
	}
	return nil
}
