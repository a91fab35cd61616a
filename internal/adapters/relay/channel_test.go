package relay

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ghalamif/machinelink/internal/domain"
)

func batchAt(ns int64) domain.Batch {
	return domain.Batch{{Measurement: "m", Timestamp: time.Unix(0, ns)}}
}

func TestChannelFIFOAndDrainAfterClose(t *testing.T) {
	ctx := context.Background()
	c := New(4)

	for i := int64(1); i <= 3; i++ {
		if err := c.Send(ctx, batchAt(i)); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	c.Close()

	if c.Len() != 3 {
		t.Fatalf("expected 3 pending batches, got %d", c.Len())
	}

	for i := int64(1); i <= 3; i++ {
		b, ok, err := c.Receive(ctx)
		if err != nil || !ok {
			t.Fatalf("receive %d: ok=%v err=%v", i, ok, err)
		}
		if got := b[0].UnixNano(); got != i {
			t.Fatalf("expected batch %d, got %d", i, got)
		}
	}

	b, ok, err := c.Receive(ctx)
	if ok || err != nil || b != nil {
		t.Fatalf("expected terminal receive, got batch=%v ok=%v err=%v", b, ok, err)
	}
}

func TestChannelCapacityClamp(t *testing.T) {
	if got := New(0).Cap(); got != 1 {
		t.Fatalf("expected capacity clamp to 1, got %d", got)
	}
	if got := New(32).Cap(); got != 32 {
		t.Fatalf("expected capacity 32, got %d", got)
	}
}

func TestChannelSendBlocksWhileFull(t *testing.T) {
	ctx := context.Background()
	var sends atomic.Int32
	c := New(2, WithSendHook(func(int) { sends.Add(1) }))

	done := make(chan error, 1)
	go func() {
		for i := int64(1); i <= 3; i++ {
			if err := c.Send(ctx, batchAt(i)); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	deadline := time.After(time.Second)
	for sends.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the first two sends")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	select {
	case err := <-done:
		t.Fatalf("third send should block on a full relay, returned %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	if got := sends.Load(); got != 2 {
		t.Fatalf("expected exactly 2 completed sends while full, got %d", got)
	}

	if _, ok, _ := c.Receive(ctx); !ok {
		t.Fatal("expected a pending batch")
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("third send: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("third send did not resume after a receive")
	}
}

func TestChannelSendAfterAbandon(t *testing.T) {
	c := New(1)
	c.Abandon()
	c.Abandon()

	if err := c.Send(context.Background(), batchAt(1)); !errors.Is(err, ErrRelayClosed) {
		t.Fatalf("expected ErrRelayClosed, got %v", err)
	}
}

func TestChannelAbandonUnblocksSender(t *testing.T) {
	c := New(1)
	if err := c.Send(context.Background(), batchAt(1)); err != nil {
		t.Fatalf("send: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- c.Send(context.Background(), batchAt(2)) }()

	time.Sleep(10 * time.Millisecond)
	c.Abandon()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrRelayClosed) {
			t.Fatalf("expected ErrRelayClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked sender was not released by Abandon")
	}
}

func TestChannelSendAfterClose(t *testing.T) {
	c := New(1)
	c.Close()
	c.Close()
	if err := c.Send(context.Background(), batchAt(1)); !errors.Is(err, ErrRelayClosed) {
		t.Fatalf("expected ErrRelayClosed, got %v", err)
	}
}

func TestChannelReceiveHonoursContext(t *testing.T) {
	c := New(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, ok, err := c.Receive(ctx)
	if ok || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got ok=%v err=%v", ok, err)
	}
}
