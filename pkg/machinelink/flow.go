package machinelink

import (
	"context"
	"fmt"

	"github.com/ghalamif/machinelink/internal/app/config"
)

// Flow is a convenience builder that lets callers say Conf → StreamIN → StreamOUT
// without touching the underlying hexagonal wiring.
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

// FlowOption mutates the Flow after configuration is loaded.
type FlowOption func(*Flow)

// StreamInOption configures the source side of the pipeline.
type StreamInOption func(*Flow)

// StreamOutOption configures the sink/observability side of the pipeline.
type StreamOutOption func(*Flow)

// Conf loads YAML from disk, applies FlowOption values, and returns a Flow builder.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromEnv is Conf for configuration held in environment variables.
func ConfFromEnv(opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadEnvConfig()
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig bootstraps a Flow from an in-memory Config. The config is
// defaulted and validated on a copy; cfg itself is left as given.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", config.ErrInvalid)
	}
	resolved, err := config.Load(config.StaticSource{Config: *cfg})
	if err != nil {
		return nil, err
	}
	f := &Flow{cfg: resolved}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config returns the resolved configuration so callers can tweak it before building a runtime.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options appends raw RuntimeOption values to the builder for advanced scenarios.
func (f *Flow) Options(opts ...RuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// StreamIN records source-side overrides.
func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT records sink-side overrides and builds a Runtime ready to run.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewRuntime(f.cfg, f.opts...)
}

// Run is a shortcut for StreamOUT + runtime.Run.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// WithFlowOptions appends RuntimeOption values during Conf.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

// StreamInSource injects a custom source (Modbus, MQTT, replay files, etc.).
func StreamInSource(src SampleSource) StreamInOption {
	return func(f *Flow) {
		if f != nil && src != nil {
			f.appendOptions(WithSource(src))
		}
	}
}

// StreamInDriver swaps the wire driver used in device and opcua modes.
func StreamInDriver(drv DeviceDriver) StreamInOption {
	return func(f *Flow) {
		if f != nil && drv != nil {
			f.appendOptions(WithDriver(drv))
		}
	}
}

// StreamInObservability overrides the default Prometheus-based observability stack.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutSink injects a custom Sink implementation.
func StreamOutSink(s Sink) StreamOutOption {
	return func(f *Flow) {
		if f != nil && s != nil {
			f.appendOptions(WithSink(s))
		}
	}
}

// StreamOutObservability replaces the default observability backend.
func StreamOutObservability(obs Observability) StreamOutOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutCallback installs a sink built from a simple callback function.
func StreamOutCallback(name string, fn SampleBatchSink) StreamOutOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(WithSink(NewCallbackSink(name, fn)))
		}
	}
}

func (f *Flow) appendOptions(opts ...RuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
