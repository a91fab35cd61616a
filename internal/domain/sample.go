package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sample is one acquisition instant: a set of named readings taken from a
// single source at a single point in time.
type Sample struct {
	Measurement string             `json:"measurement"`
	Tags        map[string]string  `json:"tags"`
	Fields      map[string]float64 `json:"fields"`
	Timestamp   time.Time          `json:"ts"`
}

// NewSample copies tags and fields so the caller may reuse its maps.
func NewSample(measurement string, tags map[string]string, fields map[string]float64, ts time.Time) Sample {
	return Sample{
		Measurement: measurement,
		Tags:        copyTags(tags),
		Fields:      copyFields(fields),
		Timestamp:   ts,
	}
}

// UnixNano returns the sample timestamp in nanoseconds since the epoch.
func (s Sample) UnixNano() int64 { return s.Timestamp.UnixNano() }

// Batch is an ordered group of samples handed to the sink as one unit.
type Batch []Sample

var (
	ErrEmptyBatch     = errors.New("domain: empty batch")
	ErrUnorderedBatch = errors.New("domain: batch timestamps out of order")
)

// Validate checks that the batch is non-empty and ordered by timestamp.
func (b Batch) Validate() error {
	if len(b) == 0 {
		return ErrEmptyBatch
	}
	for i := 1; i < len(b); i++ {
		if b[i].Timestamp.Before(b[i-1].Timestamp) {
			return fmt.Errorf("%w: sample %d at %s precedes %s", ErrUnorderedBatch, i,
				b[i].Timestamp.Format(time.RFC3339Nano), b[i-1].Timestamp.Format(time.RFC3339Nano))
		}
	}
	return nil
}

// First and Last return the oldest and newest timestamps of a non-empty batch.
func (b Batch) First() time.Time { return b[0].Timestamp }
func (b Batch) Last() time.Time  { return b[len(b)-1].Timestamp }

func copyTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyFields(src map[string]float64) map[string]float64 {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]float64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
