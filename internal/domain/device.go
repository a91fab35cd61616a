package domain

import "time"

// DeviceConfig holds the addressing details and opaque command bytes for one
// machine. It is resolved once at startup and never mutated afterwards.
type DeviceConfig struct {
	Address        string
	CheckCommand   []byte
	CheckResponse  string
	ArmCommand     []byte
	ReadoutCommand []byte
	Interval       time.Duration
	Fields         []string
}

// Demo machine command set.
var (
	DemoCheckCommand   = []byte("?K\r")
	DemoCheckResponse  = "55"
	DemoArmCommand     = []byte("MWS,0,3\r")
	DemoReadoutCommand = []byte("MWR\r")
)

const DemoMonitorInterval = 50 * time.Millisecond

// DemoDeviceConfig returns the command set of the demo machine bound to addr.
func DemoDeviceConfig(addr string) DeviceConfig {
	return DeviceConfig{
		Address:        addr,
		CheckCommand:   DemoCheckCommand,
		CheckResponse:  DemoCheckResponse,
		ArmCommand:     DemoArmCommand,
		ReadoutCommand: DemoReadoutCommand,
		Interval:       DemoMonitorInterval,
		Fields:         []string{"temperature_1", "temperature_2", "temperature_3"},
	}
}
