package machinelink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestConfFromConfigAndStreamBuilder(t *testing.T) {
	cfg := baseConfig()

	flow, err := ConfFromConfig(&cfg)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}
	if flow.Config().Series.Measurement != "machine_1" {
		t.Fatalf("expected defaults to be applied, got %+v", flow.Config().Series)
	}
	if cfg.Series.Measurement != "" {
		t.Fatalf("expected caller config to be left untouched")
	}

	src := stubSource{}
	sink := &collectingSink{}

	rt, err := flow.
		Options(WithLogger(zap.NewNop())).
		StreamIN(
			StreamInSource(src),
			StreamInObservability(stubObservability{}),
		).
		StreamOUT(
			StreamOutSink(sink),
			StreamOutObservability(stubObservability{}),
		)
	if err != nil {
		t.Fatalf("StreamOUT returned error: %v", err)
	}
	if rt.source != src {
		t.Fatalf("expected custom source to be wired")
	}
	if rt.sink != sink {
		t.Fatalf("expected custom sink to be wired")
	}
}

func TestFlowRunUsesStreamOutCallback(t *testing.T) {
	cfg := baseConfig()
	flow, err := ConfFromConfig(&cfg, WithFlowOptions(WithLogger(zap.NewNop())))
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	var (
		batches int
		bucket  string
	)
	err = flow.StreamIN(StreamInSource(stubSource{})).Run(context.Background(),
		StreamOutCallback("count", func(b string, batch []Sample) error {
			batches++
			bucket = b
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if batches != 3 || bucket != "machines" {
		t.Fatalf("expected 3 batches into %q, got %d into %q", "machines", batches, bucket)
	}
}

func TestFlowRunStopsOnCancel(t *testing.T) {
	cfg := baseConfig()
	cfg.Policy.BatchCount = 1000
	flow, err := ConfFromConfig(&cfg, WithFlowOptions(WithLogger(zap.NewNop())))
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = flow.StreamIN(StreamInSource(stubSource{})).Run(ctx, StreamOutSink(&collectingSink{}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestConfLoadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
mode: simulate
policy:
  interval: 5ms
  batch_size: 4
influxdb:
  host: http://127.0.0.1:8086
  org: plant
  token: secret
  bucket: machines
metrics:
  disabled: true
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	flow, err := Conf(path)
	if err != nil {
		t.Fatalf("Conf returned error: %v", err)
	}
	pol := flow.Config().Policy
	if pol.BatchSize != 4 || pol.BatchCount != 20 || pol.RelayCapacity != 32 {
		t.Fatalf("unexpected policy %+v", pol)
	}
}

func TestConfFromConfigRejectsNil(t *testing.T) {
	if _, err := ConfFromConfig(nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	var f *Flow
	if _, err := f.StreamOUT(); err == nil {
		t.Fatalf("expected error from nil flow")
	}
}
