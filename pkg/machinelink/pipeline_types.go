package machinelink

import (
	"github.com/ghalamif/machinelink/internal/app/pipeline"
	"github.com/ghalamif/machinelink/internal/domain"
	"github.com/ghalamif/machinelink/internal/ports"
)

// Sample is one acquisition instant. It is exported so custom adapters can reference it.
type Sample = domain.Sample

// Batch is an ordered group of samples written to the sink as one unit.
type Batch = domain.Batch

// SampleSource yields one set of named readings per call (simulators, devices, etc.).
type SampleSource = ports.SampleSource

// DeviceDriver speaks the wire protocol of a machine.
type DeviceDriver = ports.DeviceDriver

// Sink persists batches to any downstream system.
type Sink = ports.Sink

// Observability emits logs and metrics about the pipeline.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// State is the lifecycle state of a run.
type State = pipeline.State

const (
	StateIdle      = pipeline.StateIdle
	StateRunning   = pipeline.StateRunning
	StateCompleted = pipeline.StateCompleted
	StateFailed    = pipeline.StateFailed
)
