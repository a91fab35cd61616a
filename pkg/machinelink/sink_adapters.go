package machinelink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ghalamif/machinelink/internal/domain"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("machinelink: channel sink closed")

// SampleBatchSink is invoked with every batch the forwarder delivers.
type SampleBatchSink func(bucket string, batch []Sample) error

// NewCallbackSink adapts a SampleBatchSink into a full Sink implementation so callers
// can plug arbitrary functions without defining structs.
func NewCallbackSink(name string, fn SampleBatchSink) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes batches via a channel; it returns the sink, the read-only channel,
// and a close function that the caller should invoke during shutdown.
func NewChannelSink(name string, buffer int) (Sink, <-chan []Sample, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []Sample, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   SampleBatchSink
}

func (s *callbackSink) WriteBatch(_ context.Context, bucket string, batch domain.Batch) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(batch) == 0 {
		return nil
	}
	return s.fn(bucket, copyBatch(batch))
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	mu     sync.RWMutex
	ch     chan []Sample
	closed chan struct{}
	once   sync.Once
}

func (s *channelSink) WriteBatch(ctx context.Context, _ string, batch domain.Batch) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	if len(batch) == 0 {
		return nil
	}

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- copyBatch(batch):
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

// close waits for in-flight writes so the channel is never closed under a sender.
func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}

func copyBatch(batch domain.Batch) []Sample {
	out := make([]Sample, len(batch))
	for i, sample := range batch {
		out[i] = domain.NewSample(sample.Measurement, sample.Tags, sample.Fields, sample.Timestamp)
	}
	return out
}
