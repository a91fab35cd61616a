package pipeline

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Clock is the time source the acquirer schedules against.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// NewClock adapts a clock.Clock. A nil c uses the wall clock.
func NewClock(c clock.Clock) Clock {
	if c == nil {
		c = clock.New()
	}
	return schedClock{c: c}
}

type schedClock struct {
	c clock.Clock
}

func (s schedClock) Now() time.Time { return s.c.Now() }

func (s schedClock) Sleep(ctx context.Context, d time.Duration) error {
	t := s.c.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
