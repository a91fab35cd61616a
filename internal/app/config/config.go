package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ghalamif/machinelink/internal/adapters/opcua"
	"github.com/ghalamif/machinelink/internal/domain"
	"github.com/ghalamif/machinelink/internal/logging"
	"github.com/ghalamif/machinelink/internal/ports"
)

// ErrInvalid marks every configuration error: a required value that is
// missing or a value that cannot be used.
var ErrInvalid = errors.New("config: invalid")

// Acquisition modes.
const (
	ModeSimulate = "simulate"
	ModeDevice   = "device"
	ModeOPCUA    = "opcua"
)

// Sink kinds.
const (
	SinkInfluxDB  = "influxdb"
	SinkTimescale = "timescale"
)

type Config struct {
	Mode      string          `yaml:"mode" envconfig:"MACHINELINK_MODE"`
	Policy    ports.Policy    `yaml:"policy" envconfig:"MACHINELINK"`
	Series    SeriesConfig    `yaml:"series" envconfig:"SERIES"`
	Simulator SimulatorConfig `yaml:"simulator" envconfig:"SIMULATOR"`
	Device    DeviceConfig    `yaml:"device" envconfig:"DEMO_MACHINE"`
	OPCUA     opcua.Config    `yaml:"opcua" envconfig:"OPCUA"`
	Sink      SinkConfig      `yaml:"sink" envconfig:"SINK"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb" envconfig:"INFLUXDB"`
	Timescale TimescaleConfig `yaml:"timescale" envconfig:"TIMESCALE"`
	Metrics   MetricsConfig   `yaml:"metrics" envconfig:"METRICS"`
	Log       logging.Config  `yaml:"log" envconfig:"LOG"`
}

// SeriesConfig names the measurement and fixed tags attached to every sample.
type SeriesConfig struct {
	Measurement string            `yaml:"measurement"`
	Tags        map[string]string `yaml:"tags"`
	TagRunID    bool              `yaml:"tag_run_id" split_words:"true"`
}

type SimulatorConfig struct {
	Channels []string `yaml:"channels"`
	Initial  *float64 `yaml:"initial"`
	Seed     uint64   `yaml:"seed"`
}

// DeviceConfig holds the machine address and its command set. Commands accept
// \r and \n escapes so they can be written in YAML or the environment.
type DeviceConfig struct {
	Address        string        `yaml:"address"`
	CheckCommand   string        `yaml:"check_command" split_words:"true"`
	CheckResponse  string        `yaml:"check_response" split_words:"true"`
	ArmCommand     string        `yaml:"arm_command" split_words:"true"`
	ReadoutCommand string        `yaml:"readout_command" split_words:"true"`
	Fields         []string      `yaml:"fields"`
	Timeout        time.Duration `yaml:"timeout"`
}

type SinkConfig struct {
	Kind string `yaml:"kind"`
}

type InfluxDBConfig struct {
	Host   string `yaml:"host"`
	Org    string `yaml:"org"`
	Token  string `yaml:"token"`
	Bucket string `yaml:"bucket"`
}

type TimescaleConfig struct {
	ConnString string `yaml:"conn_string" split_words:"true"`
	Table      string `yaml:"table"`
	Bucket     string `yaml:"bucket"`
}

type MetricsConfig struct {
	Addr     string `yaml:"addr"`
	Disabled bool   `yaml:"disabled"`
}

// Source resolves a raw configuration. Load applies defaults and validation
// on top, so sources only need to decode.
type Source interface {
	Resolve() (*Config, error)
}

// Load resolves src, fills in defaults and validates the result.
func Load(src Source) (*Config, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: no configuration source", ErrInvalid)
	}
	cfg, err := src.Resolve()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: source returned no configuration", ErrInvalid)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeSimulate
	}
	c.Mode = strings.ToLower(c.Mode)

	if c.Policy.Interval == 0 {
		c.Policy.Interval = 500 * time.Millisecond
	}
	if c.Policy.BatchSize == 0 {
		c.Policy.BatchSize = 10
	}
	if c.Policy.BatchCount == 0 {
		c.Policy.BatchCount = 20
	}
	if c.Policy.RelayCapacity == 0 {
		c.Policy.RelayCapacity = 32
	}

	if c.Series.Measurement == "" {
		c.Series.Measurement = "machine_1"
	}
	if c.Series.Tags == nil {
		c.Series.Tags = map[string]string{"sensor_type": "temperature"}
	}

	if len(c.Simulator.Channels) == 0 {
		c.Simulator.Channels = []string{"temperature_1", "temperature_2", "temperature_3"}
	}
	if c.Simulator.Initial == nil {
		initial := 50.0
		c.Simulator.Initial = &initial
	}

	// The demo machine command set only makes sense on the line protocol;
	// OPC UA commands are node ID lists and must be configured explicitly.
	demo := domain.DemoDeviceConfig(c.Device.Address)
	if c.Mode == ModeDevice {
		if c.Device.CheckCommand == "" {
			c.Device.CheckCommand = string(demo.CheckCommand)
		}
		if c.Device.CheckResponse == "" {
			c.Device.CheckResponse = demo.CheckResponse
		}
		if c.Device.ArmCommand == "" {
			c.Device.ArmCommand = string(demo.ArmCommand)
		}
		if c.Device.ReadoutCommand == "" {
			c.Device.ReadoutCommand = string(demo.ReadoutCommand)
		}
	}
	if len(c.Device.Fields) == 0 {
		c.Device.Fields = demo.Fields
	}
	if c.Device.Timeout == 0 {
		c.Device.Timeout = 2 * time.Second
	}

	if c.Sink.Kind == "" {
		c.Sink.Kind = SinkInfluxDB
	}
	c.Sink.Kind = strings.ToLower(c.Sink.Kind)
	if c.Timescale.Table == "" {
		c.Timescale.Table = "samples"
	}
	if c.Timescale.Bucket == "" {
		c.Timescale.Bucket = c.InfluxDB.Bucket
	}
	if c.Timescale.Bucket == "" {
		c.Timescale.Bucket = "default"
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	c.OPCUA.ApplyDefaults()
}

func (c *Config) validate() error {
	var errs []error
	required := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	switch c.Mode {
	case ModeSimulate:
	case ModeDevice:
		required("device.address", c.Device.Address)
		required("device.readout_command", c.Device.ReadoutCommand)
	case ModeOPCUA:
		required("device.address", c.Device.Address)
		required("device.readout_command", c.Device.ReadoutCommand)
		if err := c.OPCUA.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("opcua config: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("mode %q is not one of simulate, device, opcua", c.Mode))
	}

	switch c.Sink.Kind {
	case SinkInfluxDB:
		required("influxdb.host", c.InfluxDB.Host)
		required("influxdb.org", c.InfluxDB.Org)
		required("influxdb.token", c.InfluxDB.Token)
		required("influxdb.bucket", c.InfluxDB.Bucket)
	case SinkTimescale:
		required("timescale.conn_string", c.Timescale.ConnString)
	default:
		errs = append(errs, fmt.Errorf("sink.kind %q is not one of influxdb, timescale", c.Sink.Kind))
	}

	if c.Policy.Interval < 0 {
		errs = append(errs, fmt.Errorf("policy.interval must be > 0"))
	}
	if c.Policy.BatchSize < 0 || c.Policy.BatchCount < 0 || c.Policy.RelayCapacity < 0 {
		errs = append(errs, fmt.Errorf("policy sizes must be > 0"))
	}
	if !c.Metrics.Disabled {
		required("metrics.addr", c.Metrics.Addr)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Bucket is the destination passed to the sink on every write.
func (c *Config) Bucket() string {
	if c.Sink.Kind == SinkTimescale {
		return c.Timescale.Bucket
	}
	return c.InfluxDB.Bucket
}

// DeviceConfig converts the device section into the immutable domain form.
func (c *Config) DeviceConfig() domain.DeviceConfig {
	return domain.DeviceConfig{
		Address:        c.Device.Address,
		CheckCommand:   []byte(unescapeCommand(c.Device.CheckCommand)),
		CheckResponse:  c.Device.CheckResponse,
		ArmCommand:     []byte(unescapeCommand(c.Device.ArmCommand)),
		ReadoutCommand: []byte(unescapeCommand(c.Device.ReadoutCommand)),
		Interval:       c.Policy.Interval,
		Fields:         append([]string(nil), c.Device.Fields...),
	}
}

var commandEscapes = strings.NewReplacer(`\r`, "\r", `\n`, "\n", `\t`, "\t")

func unescapeCommand(s string) string {
	return commandEscapes.Replace(s)
}
