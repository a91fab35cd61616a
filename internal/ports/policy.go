package ports

import "time"

// Policy controls the cadence and sizing of one pipeline run.
type Policy struct {
	Interval      time.Duration `yaml:"interval"`                          // target time between samples
	BatchSize     int           `yaml:"batch_size" split_words:"true"`     // samples per batch
	BatchCount    int           `yaml:"batch_count" split_words:"true"`    // batches per run
	RelayCapacity int           `yaml:"relay_capacity" split_words:"true"` // pending batches before the acquirer blocks
}
