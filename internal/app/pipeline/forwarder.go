package pipeline

import (
	"context"
	"time"

	"github.com/ghalamif/machinelink/internal/ports"
)

// Forwarder drains the relay into the sink. A failed write drops that batch
// and the loop moves on to the next one.
type Forwarder struct {
	Sink   ports.Sink
	Bucket string
	Obs    ports.Observability
}

// Run returns nil once the relay is closed and drained. It abandons the relay
// on return so a producer blocked on a full relay is released.
func (f *Forwarder) Run(ctx context.Context, in ports.Relay) error {
	defer in.Abandon()

	for {
		batch, ok, err := in.Receive(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		f.Obs.SetGauge(ports.MetricRelayLength, float64(in.Len()))
		f.Obs.LogDebug("batch_received",
			ports.Field{Key: "samples", Value: len(batch)},
			ports.Field{Key: "pending", Value: in.Len()})

		start := time.Now()
		if err := f.Sink.WriteBatch(ctx, f.Bucket, batch); err != nil {
			f.Obs.RecordDropped(f.Sink.Name(), batch, err)
			continue
		}
		f.Obs.ObserveLatency(ports.MetricSinkWriteSeconds, time.Since(start).Seconds())
		f.Obs.IncCounter(ports.MetricBatchesForwarded, 1)
		f.Obs.IncCounter(ports.MetricSamplesWritten, float64(len(batch)))
	}
}
