package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/ghalamif/machinelink/internal/domain"
	"github.com/ghalamif/machinelink/internal/ports"
)

// Source reads samples from one machine through a DeviceDriver using the
// command set of its DeviceConfig.
type Source struct {
	driver ports.DeviceDriver
	cfg    domain.DeviceConfig
}

func NewSource(driver ports.DeviceDriver, cfg domain.DeviceConfig) (*Source, error) {
	if driver == nil {
		return nil, fmt.Errorf("device driver is required")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("device address is required")
	}
	if len(cfg.ReadoutCommand) == 0 {
		return nil, fmt.Errorf("device readout command is required")
	}
	if len(cfg.Fields) == 0 {
		return nil, fmt.Errorf("at least one device field must be named")
	}
	return &Source{driver: driver, cfg: cfg}, nil
}

// CheckConnection sends the check command and compares the reply with the
// expected response. An empty expected response accepts any reply.
func (s *Source) CheckConnection(ctx context.Context) error {
	if len(s.cfg.CheckCommand) == 0 {
		return nil
	}
	resp, err := s.driver.Check(ctx, s.cfg.Address, s.cfg.CheckCommand)
	if err != nil {
		return fmt.Errorf("check %s: %w", s.cfg.Address, err)
	}
	if s.cfg.CheckResponse == "" {
		return nil
	}
	if got := strings.TrimSpace(string(resp)); got != s.cfg.CheckResponse {
		return fmt.Errorf("check %s: %w: got %q, want %q", s.cfg.Address, ErrUnexpectedResponse, got, s.cfg.CheckResponse)
	}
	return nil
}

// Prepare checks the link and arms monitoring so readouts return live values.
func (s *Source) Prepare(ctx context.Context) error {
	if err := s.CheckConnection(ctx); err != nil {
		return err
	}
	if len(s.cfg.ArmCommand) == 0 {
		return nil
	}
	if _, err := s.driver.ArmMonitoring(ctx, s.cfg.Address, s.cfg.ArmCommand); err != nil {
		return fmt.Errorf("arm monitoring %s: %w", s.cfg.Address, err)
	}
	return nil
}

func (s *Source) Next(ctx context.Context) (map[string]float64, error) {
	values, err := s.driver.ReadSamples(ctx, s.cfg.Address, s.cfg.ReadoutCommand)
	if err != nil {
		return nil, fmt.Errorf("readout %s: %w", s.cfg.Address, err)
	}
	if len(values) != len(s.cfg.Fields) {
		return nil, fmt.Errorf("readout %s: %w: %d values for %d fields",
			s.cfg.Address, ErrUnexpectedResponse, len(values), len(s.cfg.Fields))
	}
	out := make(map[string]float64, len(values))
	for i, name := range s.cfg.Fields {
		out[name] = values[i]
	}
	return out, nil
}

var _ ports.SampleSource = (*Source)(nil)
