package sink

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ghalamif/machinelink/internal/domain"
	"github.com/ghalamif/machinelink/internal/ports"
)

// InfluxSink writes batches to an InfluxDB v2 bucket with the blocking write
// API, so a WriteBatch error always describes that batch.
type InfluxSink struct {
	client influxdb2.Client
	org    string
}

func NewInfluxSink(host, token, org string) *InfluxSink {
	client := influxdb2.NewClient(host, token)
	return &InfluxSink{client: client, org: org}
}

func (s *InfluxSink) Name() string { return "influxdb" }

func (s *InfluxSink) WriteBatch(ctx context.Context, bucket string, batch domain.Batch) error {
	if len(batch) == 0 {
		return nil
	}
	points := make([]*write.Point, len(batch))
	for i, sample := range batch {
		points[i] = toPoint(sample)
	}
	if err := s.client.WriteAPIBlocking(s.org, bucket).WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influxdb write %d points to %s: %w", len(points), bucket, err)
	}
	return nil
}

// Close releases the HTTP client resources.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func toPoint(s domain.Sample) *write.Point {
	fields := make(map[string]interface{}, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = v
	}
	return write.NewPoint(s.Measurement, s.Tags, fields, s.Timestamp)
}

var _ ports.Sink = (*InfluxSink)(nil)
