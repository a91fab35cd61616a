package ports

import "context"

// DeviceDriver talks to a machine at a network or serial address. Commands and
// responses are opaque byte sequences defined by the device model.
type DeviceDriver interface {
	Check(ctx context.Context, address string, command []byte) ([]byte, error)
	ArmMonitoring(ctx context.Context, address string, command []byte) ([]byte, error)
	ReadSamples(ctx context.Context, address string, command []byte) ([]float64, error)
}

// SampleSource yields the field values of one acquisition instant. Sources
// are owned by a single acquirer and need not be safe for concurrent use.
type SampleSource interface {
	Next(ctx context.Context) (map[string]float64, error)
}
