package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ghalamif/machinelink/internal/domain"
	"github.com/ghalamif/machinelink/internal/ports"
)

var errSinkDown = errors.New("sink unavailable")

type recordingSink struct {
	mu      sync.Mutex
	calls   int
	batches []domain.Batch
	buckets []string
	failOn  map[int]bool // 1-based write calls that fail
	gate    chan struct{}
}

func (s *recordingSink) WriteBatch(ctx context.Context, bucket string, b domain.Batch) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failOn[s.calls] {
		return errSinkDown
	}
	s.batches = append(s.batches, b)
	s.buckets = append(s.buckets, bucket)
	return nil
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) delivered() []domain.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Batch(nil), s.batches...)
}

type recordingObs struct {
	mu       sync.Mutex
	counters map[string]float64
	dropped  []domain.Batch
	errors   []error
}

func newRecordingObs() *recordingObs {
	return &recordingObs{counters: make(map[string]float64)}
}

func (o *recordingObs) LogInfo(string, ...ports.Field)  {}
func (o *recordingObs) LogDebug(string, ...ports.Field) {}
func (o *recordingObs) LogError(_ string, err error, _ ...ports.Field) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, err)
}
func (o *recordingObs) LogCritical(string, error, ...ports.Field) {}
func (o *recordingObs) IncCounter(name string, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counters[name] += v
}
func (o *recordingObs) ObserveLatency(string, float64) {}
func (o *recordingObs) SetGauge(string, float64)       {}
func (o *recordingObs) RecordDropped(_ string, b domain.Batch, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped = append(o.dropped, b)
	o.errors = append(o.errors, err)
}

func (o *recordingObs) counter(name string) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counters[name]
}

func (o *recordingObs) drops() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.dropped)
}

// counterSource returns an increasing counter in field "n".
type counterSource struct {
	mu    sync.Mutex
	n     float64
	fail  int // 1-based call that fails, 0 for never
	calls int
}

func (c *counterSource) Next(context.Context) (map[string]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.fail != 0 && c.calls == c.fail {
		return nil, errDeviceGone
	}
	c.n++
	return map[string]float64{"n": c.n}, nil
}

var errDeviceGone = errors.New("device gone")

// fakeClock advances only when slept on or when a test source advances it.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.advance(d)
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return nil
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// slowSource spends cost[i] of fake time producing the i-th sample.
type slowSource struct {
	clock *fakeClock
	cost  func(i int) time.Duration
	i     int
}

func (s *slowSource) Next(context.Context) (map[string]float64, error) {
	s.clock.advance(s.cost(s.i))
	s.i++
	return map[string]float64{"v": float64(s.i)}, nil
}

// preparedSource records whether Prepare ran before the first read.
type preparedSource struct {
	counterSource
	prepared bool
	failPrep error
}

func (p *preparedSource) Prepare(context.Context) error {
	if p.failPrep != nil {
		return p.failPrep
	}
	p.prepared = true
	return nil
}

func (p *preparedSource) Next(ctx context.Context) (map[string]float64, error) {
	if !p.prepared {
		return nil, errors.New("read before prepare")
	}
	return p.counterSource.Next(ctx)
}
