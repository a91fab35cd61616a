package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ghalamif/machinelink/internal/domain"
	"github.com/ghalamif/machinelink/internal/ports"
)

const (
	BatchesProduced  = ports.MetricBatchesProduced
	BatchesForwarded = ports.MetricBatchesForwarded
	BatchesDropped   = ports.MetricBatchesDropped
	SamplesWritten   = ports.MetricSamplesWritten
	AcquireOverruns  = ports.MetricAcquireOverruns
	RelayLength      = ports.MetricRelayLength
	SinkWriteSeconds = ports.MetricSinkWriteSeconds
)

// PromObs records metrics in Prometheus and writes logs through zap.
type PromObs struct {
	logger   *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the pipeline metrics with reg. A nil reg uses the
// default registerer; a nil logger discards logs.
func NewPromObs(reg prometheus.Registerer, logger *zap.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	produced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: BatchesProduced,
		Help: "Batches handed from the acquirer to the relay.",
	})
	forwarded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: BatchesForwarded,
		Help: "Batches successfully written to the sink.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: BatchesDropped,
		Help: "Batches discarded after a failed sink write.",
	})
	written := prometheus.NewCounter(prometheus.CounterOpts{
		Name: SamplesWritten,
		Help: "Samples successfully written to the sink.",
	})
	overruns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: AcquireOverruns,
		Help: "Acquisitions that finished after their scheduled tick.",
	})
	relayGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: RelayLength,
		Help: "Batches pending in the relay channel.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    SinkWriteSeconds,
		Help:    "Duration of sink batch writes.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	reg.MustRegister(produced, forwarded, dropped, written, overruns, relayGauge, latency)

	return &PromObs{
		logger: logger,
		counters: map[string]prometheus.Counter{
			BatchesProduced:  produced,
			BatchesForwarded: forwarded,
			BatchesDropped:   dropped,
			SamplesWritten:   written,
			AcquireOverruns:  overruns,
		},
		gauges: map[string]prometheus.Gauge{
			RelayLength: relayGauge,
		},
		histos: map[string]prometheus.Observer{
			SinkWriteSeconds: latency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, zapFields(fields)...)
}

func (p *PromObs) LogDebug(msg string, fields ...ports.Field) {
	p.logger.Debug(msg, zapFields(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(zapFields(fields), zap.Error(err), zap.Bool("critical", true))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordDropped(sink string, b domain.Batch, err error) {
	p.IncCounter(BatchesDropped, 1)
	fields := []zap.Field{
		zap.String("sink", sink),
		zap.Int("samples", len(b)),
		zap.Error(err),
	}
	if len(b) > 0 {
		fields = append(fields, zap.Time("first_ts", b.First()), zap.Time("last_ts", b.Last()))
	}
	p.logger.Error("batch_dropped", fields...)
}

func zapFields(fields []ports.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
