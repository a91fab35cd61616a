package machinelink

import (
	base "github.com/ghalamif/machinelink/pkg/machinelink"
)

// Re-exported errors for convenience.
var (
	ErrInvalidConfig     = base.ErrInvalidConfig
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
)

// Type aliases so consumers can import github.com/ghalamif/machinelink directly.
type (
	Config          = base.Config
	Policy          = base.Policy
	SeriesConfig    = base.SeriesConfig
	SimulatorConfig = base.SimulatorConfig
	DeviceConfig    = base.DeviceConfig
	OPCUAConfig     = base.OPCUAConfig
	SinkConfig      = base.SinkConfig
	InfluxDBConfig  = base.InfluxDBConfig
	TimescaleConfig = base.TimescaleConfig
	MetricsConfig   = base.MetricsConfig
	LogConfig       = base.LogConfig
	Flow            = base.Flow
	FlowOption      = base.FlowOption
	StreamInOption  = base.StreamInOption
	StreamOutOption = base.StreamOutOption
	Runtime         = base.Runtime
	RuntimeOption   = base.RuntimeOption
	Sample          = base.Sample
	Batch           = base.Batch
	SampleBatchSink = base.SampleBatchSink
	SampleSource    = base.SampleSource
	DeviceDriver    = base.DeviceDriver
	Sink            = base.Sink
	Observability   = base.Observability
	Field           = base.Field
	State           = base.State
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func LoadEnvConfig() (*Config, error) {
	return base.LoadEnvConfig()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromEnv(opts ...FlowOption) (*Flow, error) {
	return base.ConfFromEnv(opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInSource(src SampleSource) StreamInOption {
	return base.StreamInSource(src)
}

func StreamInDriver(drv DeviceDriver) StreamInOption {
	return base.StreamInDriver(drv)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn SampleBatchSink) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithSource(src SampleSource) RuntimeOption {
	return base.WithSource(src)
}

func WithDriver(drv DeviceDriver) RuntimeOption {
	return base.WithDriver(drv)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

// Sink adapters.
func NewCallbackSink(name string, fn SampleBatchSink) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan []Sample, func()) {
	return base.NewChannelSink(name, buffer)
}
