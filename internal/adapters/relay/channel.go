package relay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ghalamif/machinelink/internal/domain"
	"github.com/ghalamif/machinelink/internal/ports"
)

// ErrRelayClosed is returned by Send once the relay was closed by the
// producer or abandoned by the consumer.
var ErrRelayClosed = errors.New("relay: closed")

// Option customizes a Channel.
type Option func(*Channel)

// WithSendHook registers fn to run after every completed Send with the number
// of batches pending at that moment.
func WithSendHook(fn func(pending int)) Option {
	return func(c *Channel) {
		c.onSend = fn
	}
}

// Channel is a bounded FIFO of batches. Send blocks while Cap batches are
// pending; Receive blocks while none are. One goroutine sends and closes, one
// goroutine receives and abandons.
type Channel struct {
	ch        chan domain.Batch
	abandoned chan struct{}
	closed    atomic.Bool

	closeOnce   sync.Once
	abandonOnce sync.Once
	onSend      func(int)
}

// New returns a relay holding at most capacity batches. Capacities below one
// are raised to one so that Send always has somewhere to put a batch.
func New(capacity int, opts ...Option) *Channel {
	if capacity < 1 {
		capacity = 1
	}
	c := &Channel{
		ch:        make(chan domain.Batch, capacity),
		abandoned: make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Channel) Send(ctx context.Context, b domain.Batch) error {
	if c.closed.Load() {
		return ErrRelayClosed
	}
	select {
	case <-c.abandoned:
		return ErrRelayClosed
	default:
	}

	select {
	case c.ch <- b:
		if c.onSend != nil {
			c.onSend(len(c.ch))
		}
		return nil
	case <-c.abandoned:
		return ErrRelayClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) Receive(ctx context.Context) (domain.Batch, bool, error) {
	select {
	case b, ok := <-c.ch:
		if !ok {
			return nil, false, nil
		}
		return b, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.ch)
	})
}

func (c *Channel) Abandon() {
	c.abandonOnce.Do(func() {
		close(c.abandoned)
	})
}

func (c *Channel) Len() int { return len(c.ch) }
func (c *Channel) Cap() int { return cap(c.ch) }

var _ ports.Relay = (*Channel)(nil)
