package device

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ghalamif/machinelink/internal/domain"
)

// fakeMachine answers demo machine commands on one end of a net.Pipe.
type fakeMachine struct {
	replies map[string]string
	dials   atomic.Int32
}

func (f *fakeMachine) dial(ctx context.Context, address string, timeout time.Duration) (Conn, error) {
	f.dials.Add(1)
	client, server := net.Pipe()
	go f.serve(server)
	return client, nil
}

func (f *fakeMachine) serve(c net.Conn) {
	defer c.Close()
	r := bufio.NewReader(c)
	for {
		cmd, err := r.ReadString('\r')
		if err != nil {
			return
		}
		reply, ok := f.replies[cmd]
		if !ok {
			return
		}
		if _, err := c.Write([]byte(reply + "\r")); err != nil {
			return
		}
	}
}

func newFakeDriver(replies map[string]string) (*LineDriver, *fakeMachine) {
	m := &fakeMachine{replies: replies}
	d := NewLineDriver(time.Second)
	d.Dial = m.dial
	return d, m
}

func TestLineDriverExchange(t *testing.T) {
	d, m := newFakeDriver(map[string]string{
		"?K\r":  "55",
		"MWR\r": "50.5, 49.0,51.25",
	})
	defer d.Close()
	ctx := context.Background()

	resp, err := d.Check(ctx, "machine:8501", []byte("?K\r"))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if string(resp) != "55" {
		t.Fatalf("expected 55, got %q", resp)
	}

	values, err := d.ReadSamples(ctx, "machine:8501", []byte("MWR\r"))
	if err != nil {
		t.Fatalf("read samples: %v", err)
	}
	want := []float64{50.5, 49.0, 51.25}
	if len(values) != len(want) {
		t.Fatalf("expected %d values, got %v", len(want), values)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Fatalf("value %d: expected %v, got %v", i, want[i], values[i])
		}
	}
	if m.dials.Load() != 1 {
		t.Fatalf("expected the connection to be reused, dialled %d times", m.dials.Load())
	}
}

func TestLineDriverRedialsAfterFailure(t *testing.T) {
	d, m := newFakeDriver(map[string]string{"?K\r": "55"})
	defer d.Close()
	ctx := context.Background()

	// Unknown command makes the fake hang up.
	if _, err := d.Check(ctx, "machine:8501", []byte("??\r")); err == nil {
		t.Fatal("expected error when the device hangs up")
	}
	if _, err := d.Check(ctx, "machine:8501", []byte("?K\r")); err != nil {
		t.Fatalf("check after redial: %v", err)
	}
	if m.dials.Load() != 2 {
		t.Fatalf("expected a redial, dialled %d times", m.dials.Load())
	}
}

func TestLineDriverEmptyCommand(t *testing.T) {
	d, _ := newFakeDriver(nil)
	if _, err := d.Check(context.Background(), "machine:8501", nil); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestLineDriverTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	m := &fakeMachine{replies: map[string]string{"?K\r": "55"}}
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		m.serve(c)
	}()

	d := NewLineDriver(time.Second)
	defer d.Close()
	resp, err := d.Check(context.Background(), "tcp://"+ln.Addr().String(), []byte("?K\r"))
	if err != nil {
		t.Fatalf("check over tcp: %v", err)
	}
	if string(resp) != "55" {
		t.Fatalf("expected 55, got %q", resp)
	}
}

func TestDialRejectsUnknownScheme(t *testing.T) {
	_, err := Dial(context.Background(), "udp://127.0.0.1:1", time.Second)
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported scheme error, got %v", err)
	}
}

func TestParseReadout(t *testing.T) {
	if _, err := parseReadout([]byte("  ")); !errors.Is(err, ErrUnexpectedResponse) {
		t.Fatalf("expected ErrUnexpectedResponse for empty readout, got %v", err)
	}
	if _, err := parseReadout([]byte("1.0,abc")); !errors.Is(err, ErrUnexpectedResponse) {
		t.Fatalf("expected ErrUnexpectedResponse for bad field, got %v", err)
	}
	for _, resp := range []string{"1.0,NaN", "Inf,2", "1,-Inf,3", "+Infinity", "nan"} {
		if _, err := parseReadout([]byte(resp)); !errors.Is(err, ErrUnexpectedResponse) {
			t.Fatalf("expected ErrUnexpectedResponse for %q, got %v", resp, err)
		}
	}
	got, err := parseReadout([]byte(" 1.5, -2e3 ,0"))
	if err != nil || len(got) != 3 || got[1] != -2000 {
		t.Fatalf("unexpected readout %v err=%v", got, err)
	}
}

func TestSourcePrepareAndNext(t *testing.T) {
	cfg := domain.DemoDeviceConfig("machine:8501")
	d, _ := newFakeDriver(map[string]string{
		string(cfg.CheckCommand):   "55",
		string(cfg.ArmCommand):     "OK",
		string(cfg.ReadoutCommand): "1,2,3",
	})
	defer d.Close()

	src, err := NewSource(d, cfg)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	ctx := context.Background()
	if err := src.Prepare(ctx); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	fields, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if fields["temperature_1"] != 1 || fields["temperature_3"] != 3 {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestSourceCheckMismatch(t *testing.T) {
	cfg := domain.DemoDeviceConfig("machine:8501")
	d, _ := newFakeDriver(map[string]string{string(cfg.CheckCommand): "99"})
	defer d.Close()

	src, _ := NewSource(d, cfg)
	if err := src.CheckConnection(context.Background()); !errors.Is(err, ErrUnexpectedResponse) {
		t.Fatalf("expected ErrUnexpectedResponse, got %v", err)
	}
}

func TestSourceFieldCountMismatch(t *testing.T) {
	cfg := domain.DemoDeviceConfig("machine:8501")
	d, _ := newFakeDriver(map[string]string{string(cfg.ReadoutCommand): "1,2"})
	defer d.Close()

	src, _ := NewSource(d, cfg)
	if _, err := src.Next(context.Background()); !errors.Is(err, ErrUnexpectedResponse) {
		t.Fatalf("expected ErrUnexpectedResponse, got %v", err)
	}
}

func TestNewSourceValidation(t *testing.T) {
	if _, err := NewSource(nil, domain.DemoDeviceConfig("x")); err == nil {
		t.Fatal("expected error for nil driver")
	}
	if _, err := NewSource(NewLineDriver(0), domain.DeviceConfig{}); err == nil {
		t.Fatal("expected error for missing address")
	}
}
