package ports

import (
	"context"

	"github.com/ghalamif/machinelink/internal/domain"
)

// Relay is the bounded single-producer single-consumer handoff between the
// acquirer and the forwarder.
type Relay interface {
	// Send blocks while the relay is full.
	Send(ctx context.Context, b domain.Batch) error
	// Receive blocks while the relay is empty and open. It reports false once
	// the relay is closed and drained.
	Receive(ctx context.Context) (domain.Batch, bool, error)
	// Close is called by the producer when no more batches follow.
	Close()
	// Abandon is called by the consumer when it stops receiving.
	Abandon()
	Len() int
	Cap() int
}
