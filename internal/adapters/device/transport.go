package device

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
)

// Conn is an open link to a device.
type Conn interface {
	io.ReadWriteCloser
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

// Dialer opens a Conn for an address. It is a variable on LineDriver so tests
// can substitute an in-memory link.
type Dialer func(ctx context.Context, address string, timeout time.Duration) (Conn, error)

const defaultBaudRate = 9600

// Dial understands three address forms:
//
//	host:port                 TCP
//	tcp://host:port           TCP
//	serial:///dev/ttyUSB0?baud=19200
func Dial(ctx context.Context, address string, timeout time.Duration) (Conn, error) {
	if !strings.Contains(address, "://") {
		return dialTCP(ctx, address, timeout)
	}
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("parse device address %q: %w", address, err)
	}
	switch u.Scheme {
	case "tcp":
		return dialTCP(ctx, u.Host, timeout)
	case "serial":
		return openSerial(u, timeout)
	default:
		return nil, fmt.Errorf("unsupported device scheme %q", u.Scheme)
	}
}

func dialTCP(ctx context.Context, hostport string, timeout time.Duration) (Conn, error) {
	d := net.Dialer{Timeout: timeout}
	c, err := d.DialContext(ctx, "tcp", hostport)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", hostport, err)
	}
	return c, nil
}

func openSerial(u *url.URL, timeout time.Duration) (Conn, error) {
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	baud := defaultBaudRate
	if raw := u.Query().Get("baud"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid baud rate %q", raw)
		}
		baud = v
	}

	port, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", path, err)
	}
	if timeout > 0 {
		if err := port.SetReadTimeout(timeout); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("serial read timeout: %w", err)
		}
	}
	return port, nil
}
