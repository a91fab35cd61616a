package ports

import "github.com/ghalamif/machinelink/internal/domain"

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogDebug(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)

	RecordDropped(sink string, b domain.Batch, err error)
}

type Field struct {
	Key   string
	Value any
}

// Metric names recorded by the pipeline.
const (
	MetricBatchesProduced  = "machinelink_batches_produced_total"
	MetricBatchesForwarded = "machinelink_batches_forwarded_total"
	MetricBatchesDropped   = "machinelink_batches_dropped_total"
	MetricSamplesWritten   = "machinelink_samples_written_total"
	MetricAcquireOverruns  = "machinelink_acquire_overruns_total"
	MetricRelayLength      = "machinelink_relay_length"
	MetricSinkWriteSeconds = "machinelink_sink_write_seconds"
)
