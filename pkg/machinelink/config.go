package machinelink

import (
	"github.com/ghalamif/machinelink/internal/adapters/opcua"
	"github.com/ghalamif/machinelink/internal/app/config"
	"github.com/ghalamif/machinelink/internal/logging"
	"github.com/ghalamif/machinelink/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

// ErrInvalidConfig marks every configuration error.
var ErrInvalidConfig = config.ErrInvalid

type (
	// Policy controls the acquisition cadence and relay capacity.
	Policy = ports.Policy
	// SeriesConfig names the measurement and tags of every sample.
	SeriesConfig = config.SeriesConfig
	// SimulatorConfig configures the random-walk source.
	SimulatorConfig = config.SimulatorConfig
	// DeviceConfig holds the machine address and command set.
	DeviceConfig = config.DeviceConfig
	// OPCUAConfig holds OPC UA session settings.
	OPCUAConfig = opcua.Config
	// SinkConfig selects the sink kind.
	SinkConfig = config.SinkConfig
	// InfluxDBConfig configures the InfluxDB sink.
	InfluxDBConfig = config.InfluxDBConfig
	// TimescaleConfig configures the TimescaleDB sink.
	TimescaleConfig = config.TimescaleConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// LogConfig configures the zap logger.
	LogConfig = logging.Config
)

// Acquisition modes and sink kinds accepted by Config.
const (
	ModeSimulate  = config.ModeSimulate
	ModeDevice    = config.ModeDevice
	ModeOPCUA     = config.ModeOPCUA
	SinkInfluxDB  = config.SinkInfluxDB
	SinkTimescale = config.SinkTimescale
)

// LoadConfig loads YAML from disk, applies defaults and validates.
func LoadConfig(path string) (*Config, error) {
	return config.LoadFile(path)
}

// LoadEnvConfig reads the configuration from environment variables.
func LoadEnvConfig() (*Config, error) {
	return config.LoadEnv()
}
