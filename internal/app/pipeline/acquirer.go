package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ghalamif/machinelink/internal/domain"
	"github.com/ghalamif/machinelink/internal/ports"
)

// Preparer is implemented by sources that need a handshake before the first
// read, such as a device that must be checked and armed.
type Preparer interface {
	Prepare(ctx context.Context) error
}

// Acquirer produces BatchCount batches of BatchSize samples, one sample every
// Interval, and hands each completed batch to the relay.
type Acquirer struct {
	Source      ports.SampleSource
	Clock       Clock
	Obs         ports.Observability
	Interval    time.Duration
	BatchSize   int
	BatchCount  int
	Measurement string
	Tags        map[string]string
}

// Run closes out when it returns, whatever the outcome, so the consumer
// always observes the end of the stream.
//
// Wake-ups follow an accumulated schedule: the n-th sample is due at
// start+n*Interval, so a slow read shortens the following sleeps instead of
// delaying the rest of the run.
func (a *Acquirer) Run(ctx context.Context, out ports.Relay) error {
	defer out.Close()

	if p, ok := a.Source.(Preparer); ok {
		if err := p.Prepare(ctx); err != nil {
			return fmt.Errorf("prepare source: %w", err)
		}
	}

	var (
		next = a.Clock.Now()
		last time.Time
	)
	for n := 0; n < a.BatchCount; n++ {
		batch := make(domain.Batch, 0, a.BatchSize)
		for m := 0; m < a.BatchSize; m++ {
			next = next.Add(a.Interval)

			fields, err := a.Source.Next(ctx)
			if err != nil {
				return fmt.Errorf("acquire batch %d sample %d: %w", n, m, err)
			}

			ts := a.Clock.Now()
			if !ts.After(last) {
				ts = last.Add(time.Nanosecond)
			}
			last = ts
			batch = append(batch, domain.NewSample(a.Measurement, a.Tags, fields, ts))

			wait := next.Sub(a.Clock.Now())
			if wait > 0 {
				if err := a.Clock.Sleep(ctx, wait); err != nil {
					return err
				}
			} else if wait < 0 {
				a.Obs.IncCounter(ports.MetricAcquireOverruns, 1)
			}
		}

		if err := out.Send(ctx, batch); err != nil {
			return fmt.Errorf("send batch %d: %w", n, err)
		}
		a.Obs.IncCounter(ports.MetricBatchesProduced, 1)
		a.Obs.SetGauge(ports.MetricRelayLength, float64(out.Len()))
	}
	return nil
}
