// Package simulator produces synthetic temperature readings for running the
// pipeline without a machine attached.
package simulator

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/ghalamif/machinelink/internal/ports"
)

// StepRange bounds the raw draw of one step; a draw d moves a channel by d/StepScale.
const (
	StepRange = 100
	StepScale = 10.0
)

// Rand is the random source consumed by Advance. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// WalkState is the position of every channel of the random walk.
type WalkState struct {
	Values []float64
}

// Advance moves every channel by an independent uniform step in
// [-StepRange/StepScale, +StepRange/StepScale] and returns the new state.
// The input state is left untouched.
func Advance(s WalkState, rng Rand) WalkState {
	next := WalkState{Values: make([]float64, len(s.Values))}
	for i, v := range s.Values {
		draw := rng.IntN(2*StepRange+1) - StepRange
		next.Values[i] = v + float64(draw)/StepScale
	}
	return next
}

// Walk is a SampleSource that reports its current state and then advances.
type Walk struct {
	names []string
	state WalkState
	rng   Rand
}

// NewWalk starts every named channel at initial. A nil rng uses a randomly seeded PCG.
func NewWalk(names []string, initial float64, rng Rand) (*Walk, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("simulator: at least one channel name is required")
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	values := make([]float64, len(names))
	for i := range values {
		values[i] = initial
	}
	return &Walk{
		names: append([]string(nil), names...),
		state: WalkState{Values: values},
		rng:   rng,
	}, nil
}

// DefaultChannels are the three temperature channels of the demo machine.
var DefaultChannels = []string{"temperature_1", "temperature_2", "temperature_3"}

const DefaultInitial = 50.0

func (w *Walk) Next(ctx context.Context) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(w.names))
	for i, name := range w.names {
		out[name] = w.state.Values[i]
	}
	w.state = Advance(w.state, w.rng)
	return out, nil
}

// State returns a copy of the current walk position.
func (w *Walk) State() WalkState {
	return WalkState{Values: append([]float64(nil), w.state.Values...)}
}

var _ ports.SampleSource = (*Walk)(nil)
