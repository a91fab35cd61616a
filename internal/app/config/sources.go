package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// LegacyAddressEnv is the device address variable used by earlier deployments.
const LegacyAddressEnv = "DemoMachineStatusConfigAddress"

// EnvSource reads configuration from process environment variables such as
// INFLUXDB_HOST, DEMO_MACHINE_ADDRESS and MACHINELINK_INTERVAL.
type EnvSource struct{}

func (EnvSource) Resolve() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: environment: %w", ErrInvalid, err)
	}
	if cfg.Device.Address == "" {
		cfg.Device.Address = os.Getenv(LegacyAddressEnv)
	}
	return &cfg, nil
}

// FileSource reads a YAML configuration file.
type FileSource struct {
	Path string
}

func (f FileSource) Resolve() (*Config, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalid, f.Path, err)
	}
	return &cfg, nil
}

// StaticSource hands out a copy of an in-memory configuration.
type StaticSource struct {
	Config Config
}

func (s StaticSource) Resolve() (*Config, error) {
	cfg := s.Config
	return &cfg, nil
}

// LoadEnv loads configuration from the environment.
func LoadEnv() (*Config, error) {
	return Load(EnvSource{})
}

// LoadFile loads configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	return Load(FileSource{Path: path})
}
