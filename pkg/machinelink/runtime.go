package machinelink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ghalamif/machinelink/internal/adapters/device"
	"github.com/ghalamif/machinelink/internal/adapters/observability"
	"github.com/ghalamif/machinelink/internal/adapters/opcua"
	"github.com/ghalamif/machinelink/internal/adapters/simulator"
	"github.com/ghalamif/machinelink/internal/adapters/sink"
	"github.com/ghalamif/machinelink/internal/app/config"
	"github.com/ghalamif/machinelink/internal/app/pipeline"
	"github.com/ghalamif/machinelink/internal/logging"
	"github.com/ghalamif/machinelink/internal/ports"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	source   SampleSource
	driver   DeviceDriver
	sink     Sink
	obs      Observability
	clock    clock.Clock
	registry *prometheus.Registry
	logger   *zap.Logger
}

// WithSource replaces the source chosen by the configured mode.
func WithSource(src SampleSource) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.source = src
	}
}

// WithDriver keeps the device session from the configuration but talks to
// the machine through drv instead of the built-in line or OPC UA driver.
func WithDriver(drv DeviceDriver) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.driver = drv
	}
}

// WithSink injects a custom sink so batches can be sent to any database or API.
func WithSink(s Sink) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sink = s
	}
}

func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.obs = obs
	}
}

// WithClock drives acquisition from c, typically a clock.Mock in tests.
func WithClock(c clock.Clock) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.clock = c
	}
}

// WithRegistry registers the runtime metrics on reg and serves reg on /metrics.
func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.registry = reg
	}
}

func WithLogger(l *zap.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// Checker is implemented by sources that can verify their link without
// starting acquisition.
type Checker interface {
	CheckConnection(ctx context.Context) error
}

type closer interface {
	Close() error
}

// Runtime wires source → acquirer → relay → forwarder → sink for one run and
// serves the Prometheus metrics of that run.
type Runtime struct {
	cfg        *Config
	logger     *zap.Logger
	obs        ports.Observability
	registry   *prometheus.Registry
	source     ports.SampleSource
	sink       ports.Sink
	supervisor *pipeline.Supervisor
	closers    []closer
	metricsSrv *http.Server
}

// NewRuntimeFromSource resolves, defaults and validates the configuration
// before building a Runtime. Nothing is started.
func NewRuntimeFromSource(src config.Source, opts ...RuntimeOption) (*Runtime, error) {
	cfg, err := config.Load(src)
	if err != nil {
		return nil, err
	}
	return NewRuntime(cfg, opts...)
}

// NewRuntime bootstraps the adapters selected by cfg: the random-walk
// simulator, the line-protocol device or OPC UA as source and InfluxDB or
// TimescaleDB as sink. RuntimeOption values override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", config.ErrInvalid)
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	rt := &Runtime{cfg: cfg}

	rt.logger = overrides.logger
	if rt.logger == nil {
		l, err := logging.New(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("%w: log: %w", config.ErrInvalid, err)
		}
		rt.logger = l
	}

	rt.registry = overrides.registry
	if rt.registry == nil {
		rt.registry = prometheus.NewRegistry()
	}

	rt.obs = overrides.obs
	if rt.obs == nil {
		rt.obs = observability.NewPromObs(rt.registry, rt.logger)
	}

	var err error
	rt.source = overrides.source
	if rt.source == nil {
		rt.source, err = rt.buildSource(overrides.driver)
		if err != nil {
			rt.closeAll()
			return nil, err
		}
	}

	rt.sink = overrides.sink
	if rt.sink == nil {
		rt.sink, err = rt.buildSink()
		if err != nil {
			rt.closeAll()
			return nil, err
		}
	}

	rt.supervisor, err = pipeline.NewSupervisor(rt.source, rt.sink, pipeline.Settings{
		Policy:      cfg.Policy,
		Bucket:      cfg.Bucket(),
		Measurement: cfg.Series.Measurement,
		Tags:        cfg.Series.Tags,
		TagRunID:    cfg.Series.TagRunID,
	},
		pipeline.WithClock(pipeline.NewClock(overrides.clock)),
		pipeline.WithObservability(rt.obs),
	)
	if err != nil {
		rt.closeAll()
		return nil, err
	}
	return rt, nil
}

func (r *Runtime) buildSource(drv DeviceDriver) (ports.SampleSource, error) {
	cfg := r.cfg
	switch cfg.Mode {
	case config.ModeSimulate:
		var rng simulator.Rand
		if cfg.Simulator.Seed != 0 {
			rng = rand.New(rand.NewPCG(cfg.Simulator.Seed, cfg.Simulator.Seed))
		}
		initial := simulator.DefaultInitial
		if cfg.Simulator.Initial != nil {
			initial = *cfg.Simulator.Initial
		}
		return simulator.NewWalk(cfg.Simulator.Channels, initial, rng)

	case config.ModeDevice, config.ModeOPCUA:
		if drv == nil {
			switch cfg.Mode {
			case config.ModeDevice:
				ld := device.NewLineDriver(cfg.Device.Timeout)
				r.closers = append(r.closers, ld)
				drv = ld
			default:
				od, err := opcua.NewDriver(cfg.OPCUA)
				if err != nil {
					return nil, err
				}
				r.closers = append(r.closers, od)
				drv = od
			}
		}
		return device.NewSource(drv, cfg.DeviceConfig())
	}
	return nil, fmt.Errorf("%w: unknown mode %q", config.ErrInvalid, cfg.Mode)
}

func (r *Runtime) buildSink() (ports.Sink, error) {
	cfg := r.cfg
	switch cfg.Sink.Kind {
	case config.SinkInfluxDB:
		s := sink.NewInfluxSink(cfg.InfluxDB.Host, cfg.InfluxDB.Token, cfg.InfluxDB.Org)
		r.closers = append(r.closers, s)
		return s, nil
	case config.SinkTimescale:
		db, err := sql.Open("postgres", cfg.Timescale.ConnString)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, db)
		return sink.NewTimescaleSink(db, cfg.Timescale.Table), nil
	}
	return nil, fmt.Errorf("%w: unknown sink kind %q", config.ErrInvalid, cfg.Sink.Kind)
}

// Config returns the resolved configuration the runtime was built from.
func (r *Runtime) Config() *Config { return r.cfg }

func (r *Runtime) State() State { return r.supervisor.State() }

func (r *Runtime) RunID() string { return r.supervisor.RunID() }

// Check verifies the link to the configured source without acquiring. Sources
// that cannot be checked, such as the simulator, always pass.
func (r *Runtime) Check(ctx context.Context) error {
	c, ok := r.source.(Checker)
	if !ok {
		r.logger.Info("source has no connection check", zap.String("mode", r.cfg.Mode))
		return nil
	}
	if err := c.CheckConnection(ctx); err != nil {
		return err
	}
	r.logger.Info("interface check passed",
		zap.String("mode", r.cfg.Mode),
		zap.String("address", r.cfg.Device.Address))
	return nil
}

// Run serves metrics, runs the pipeline to completion and shuts the runtime
// down. The pipeline error, if any, is returned together with shutdown errors.
func (r *Runtime) Run(ctx context.Context) error {
	r.startMetrics()
	runErr := r.supervisor.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(runErr, r.Shutdown(shutdownCtx))
}

// Shutdown stops the metrics server and releases device and sink resources.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
		r.metricsSrv = nil
	}
	if err := r.closeAll(); err != nil {
		errs = append(errs, err)
	}
	_ = r.logger.Sync()

	return errors.Join(errs...)
}

func (r *Runtime) closeAll() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *Runtime) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (r *Runtime) startMetrics() {
	if r.cfg.Metrics.Disabled {
		return
	}
	r.metricsSrv = &http.Server{
		Addr:              r.cfg.Metrics.Addr,
		Handler:           r.metricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv := r.metricsSrv
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("metrics server exited", zap.Error(err))
		}
	}()
}
