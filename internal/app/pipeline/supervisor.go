package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ghalamif/machinelink/internal/adapters/relay"
	"github.com/ghalamif/machinelink/internal/ports"
)

var (
	// ErrInvalidSettings is returned before any task starts when the run
	// cannot be set up.
	ErrInvalidSettings = errors.New("pipeline: invalid settings")
	ErrAlreadyStarted  = errors.New("pipeline: already started")
)

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Settings describes one run.
type Settings struct {
	Policy      ports.Policy
	Bucket      string
	Measurement string
	Tags        map[string]string
	TagRunID    bool
}

// Option customizes a Supervisor.
type Option func(*Supervisor)

func WithClock(c Clock) Option {
	return func(s *Supervisor) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithObservability(obs ports.Observability) Option {
	return func(s *Supervisor) {
		if obs != nil {
			s.obs = obs
		}
	}
}

// WithRelayFactory replaces the bounded channel built for each run.
func WithRelayFactory(fn func(capacity int) ports.Relay) Option {
	return func(s *Supervisor) {
		if fn != nil {
			s.newRelay = fn
		}
	}
}

// Supervisor owns one acquirer and one forwarder connected by a relay.
type Supervisor struct {
	source   ports.SampleSource
	sink     ports.Sink
	settings Settings
	clock    Clock
	obs      ports.Observability
	newRelay func(int) ports.Relay

	state atomic.Int32
	runID string
}

func NewSupervisor(src ports.SampleSource, sink ports.Sink, settings Settings, opts ...Option) (*Supervisor, error) {
	if err := validateSettings(src, sink, settings); err != nil {
		return nil, err
	}
	s := &Supervisor{
		source:   src,
		sink:     sink,
		settings: settings,
		clock:    NewClock(nil),
		obs:      nopObs{},
		newRelay: func(capacity int) ports.Relay { return relay.New(capacity) },
		runID:    uuid.NewString(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func validateSettings(src ports.SampleSource, sink ports.Sink, st Settings) error {
	var errs []error
	if src == nil {
		errs = append(errs, errors.New("sample source is nil"))
	}
	if sink == nil {
		errs = append(errs, errors.New("sink is nil"))
	}
	if st.Policy.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be > 0, got %s", st.Policy.Interval))
	}
	if st.Policy.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size must be > 0, got %d", st.Policy.BatchSize))
	}
	if st.Policy.BatchCount <= 0 {
		errs = append(errs, fmt.Errorf("batch count must be > 0, got %d", st.Policy.BatchCount))
	}
	if st.Policy.RelayCapacity <= 0 {
		errs = append(errs, fmt.Errorf("relay capacity must be > 0, got %d", st.Policy.RelayCapacity))
	}
	if st.Measurement == "" {
		errs = append(errs, errors.New("measurement is required"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
}

func (s *Supervisor) State() State { return State(s.state.Load()) }

// RunID identifies this supervisor's run in logs and, optionally, in tags.
func (s *Supervisor) RunID() string { return s.runID }

// Run starts the acquirer and the forwarder, waits for both and returns the
// first error either of them reported. A Supervisor runs once.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}

	pol := s.settings.Policy
	ch := s.newRelay(pol.RelayCapacity)

	tags := make(map[string]string, len(s.settings.Tags)+1)
	for k, v := range s.settings.Tags {
		tags[k] = v
	}
	if s.settings.TagRunID {
		tags["run_id"] = s.runID
	}

	acq := &Acquirer{
		Source:      s.source,
		Clock:       s.clock,
		Obs:         s.obs,
		Interval:    pol.Interval,
		BatchSize:   pol.BatchSize,
		BatchCount:  pol.BatchCount,
		Measurement: s.settings.Measurement,
		Tags:        tags,
	}
	fwd := &Forwarder{
		Sink:   s.sink,
		Bucket: s.settings.Bucket,
		Obs:    s.obs,
	}

	s.obs.LogInfo("pipeline_started",
		ports.Field{Key: "run_id", Value: s.runID},
		ports.Field{Key: "sink", Value: s.sink.Name()},
		ports.Field{Key: "interval", Value: pol.Interval.String()},
		ports.Field{Key: "batch_size", Value: pol.BatchSize},
		ports.Field{Key: "batch_count", Value: pol.BatchCount},
		ports.Field{Key: "relay_capacity", Value: pol.RelayCapacity})
	start := time.Now()

	var g errgroup.Group
	g.Go(func() error { return acq.Run(ctx, ch) })
	g.Go(func() error { return fwd.Run(ctx, ch) })

	if err := g.Wait(); err != nil {
		s.state.Store(int32(StateFailed))
		s.obs.LogError("pipeline_failed", err,
			ports.Field{Key: "run_id", Value: s.runID},
			ports.Field{Key: "elapsed", Value: time.Since(start).String()})
		return err
	}

	s.state.Store(int32(StateCompleted))
	s.obs.LogInfo("pipeline_completed",
		ports.Field{Key: "run_id", Value: s.runID},
		ports.Field{Key: "elapsed", Value: time.Since(start).String()})
	return nil
}
