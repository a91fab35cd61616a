package main

import (
	"fmt"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

var statsMetrics = []string{
	"machinelink_batches_produced_total",
	"machinelink_batches_forwarded_total",
	"machinelink_batches_dropped_total",
	"machinelink_samples_written_total",
	"machinelink_acquire_overruns_total",
	"machinelink_relay_length",
}

type snapshot map[string]float64

func (s snapshot) String() string {
	return fmt.Sprintf("produced=%g forwarded=%g dropped=%g samples=%g overruns=%g relay=%g",
		s["machinelink_batches_produced_total"],
		s["machinelink_batches_forwarded_total"],
		s["machinelink_batches_dropped_total"],
		s["machinelink_samples_written_total"],
		s["machinelink_acquire_overruns_total"],
		s["machinelink_relay_length"],
	)
}

// scrapeSnapshot picks the unlabelled pipeline series out of a Prometheus
// text exposition.
func scrapeSnapshot(r io.Reader) (snapshot, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, fmt.Errorf("parse metrics: %w", err)
	}

	snap := make(snapshot, len(statsMetrics))
	for _, name := range statsMetrics {
		mf, ok := families[name]
		if !ok {
			continue
		}
		for _, m := range mf.GetMetric() {
			if len(m.GetLabel()) != 0 {
				continue
			}
			if v, ok := metricValue(m); ok {
				snap[name] = v
				break
			}
		}
	}
	return snap, nil
}

func metricValue(m *dto.Metric) (float64, bool) {
	switch {
	case m.Counter != nil:
		return m.GetCounter().GetValue(), true
	case m.Gauge != nil:
		return m.GetGauge().GetValue(), true
	case m.Untyped != nil:
		return m.GetUntyped().GetValue(), true
	}
	return 0, false
}
