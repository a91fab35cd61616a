package device

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ghalamif/machinelink/internal/ports"
)

var (
	// ErrUnexpectedResponse reports a reply the device model does not define.
	ErrUnexpectedResponse = errors.New("device: unexpected response")
	errReadTimeout        = errors.New("device: read timed out")
)

const (
	defaultTimeout = 2 * time.Second
	maxResponseLen = 4096
)

// LineDriver speaks a carriage-return terminated request/response protocol
// over TCP or a serial port. One connection per address is kept open and
// redialled after any I/O error.
type LineDriver struct {
	Dial    Dialer
	Timeout time.Duration

	mu    sync.Mutex
	conns map[string]Conn
}

func NewLineDriver(timeout time.Duration) *LineDriver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &LineDriver{
		Dial:    Dial,
		Timeout: timeout,
		conns:   make(map[string]Conn),
	}
}

func (d *LineDriver) Check(ctx context.Context, address string, command []byte) ([]byte, error) {
	return d.exchange(ctx, address, command)
}

func (d *LineDriver) ArmMonitoring(ctx context.Context, address string, command []byte) ([]byte, error) {
	return d.exchange(ctx, address, command)
}

func (d *LineDriver) ReadSamples(ctx context.Context, address string, command []byte) ([]float64, error) {
	resp, err := d.exchange(ctx, address, command)
	if err != nil {
		return nil, err
	}
	return parseReadout(resp)
}

// Close drops every open connection.
func (d *LineDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var errs []error
	for addr, c := range d.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", addr, err))
		}
		delete(d.conns, addr)
	}
	return errors.Join(errs...)
}

func (d *LineDriver) exchange(ctx context.Context, address string, command []byte) ([]byte, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("device %s: empty command", address)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	conn, err := d.connLocked(ctx, address)
	if err != nil {
		return nil, err
	}

	if dl, ok := conn.(deadliner); ok {
		deadline := time.Now().Add(d.Timeout)
		if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
			deadline = ctxDeadline
		}
		_ = dl.SetDeadline(deadline)
	}

	if _, err := conn.Write(command); err != nil {
		d.dropLocked(address)
		return nil, fmt.Errorf("device %s: write: %w", address, err)
	}
	resp, err := readLine(conn)
	if err != nil {
		d.dropLocked(address)
		return nil, fmt.Errorf("device %s: read: %w", address, err)
	}
	return resp, nil
}

func (d *LineDriver) connLocked(ctx context.Context, address string) (Conn, error) {
	if d.conns == nil {
		d.conns = make(map[string]Conn)
	}
	if c, ok := d.conns[address]; ok {
		return c, nil
	}
	dial := d.Dial
	if dial == nil {
		dial = Dial
	}
	c, err := dial(ctx, address, d.Timeout)
	if err != nil {
		return nil, err
	}
	d.conns[address] = c
	return c, nil
}

func (d *LineDriver) dropLocked(address string) {
	if c, ok := d.conns[address]; ok {
		_ = c.Close()
		delete(d.conns, address)
	}
}

// readLine reads up to and excluding the first CR or LF. A zero-length read
// without error is how serial ports report their read timeout.
func readLine(c Conn) ([]byte, error) {
	var (
		buf [1]byte
		out []byte
	)
	for {
		n, err := c.Read(buf[:])
		if n == 1 {
			if buf[0] == '\r' || buf[0] == '\n' {
				if len(out) == 0 {
					continue
				}
				return out, nil
			}
			out = append(out, buf[0])
			if len(out) > maxResponseLen {
				return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrUnexpectedResponse, maxResponseLen)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return nil, errReadTimeout
	}
}

// parseReadout decodes a comma separated list of finite decimal readings.
func parseReadout(resp []byte) ([]float64, error) {
	raw := strings.TrimSpace(string(resp))
	if raw == "" {
		return nil, fmt.Errorf("%w: empty readout", ErrUnexpectedResponse)
	}
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: readout field %q", ErrUnexpectedResponse, p)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite readout field %q", ErrUnexpectedResponse, p)
		}
		out = append(out, v)
	}
	return out, nil
}

var _ ports.DeviceDriver = (*LineDriver)(nil)
