package ports

import (
	"context"

	"github.com/ghalamif/machinelink/internal/domain"
)

type Sink interface {
	WriteBatch(ctx context.Context, bucket string, batch domain.Batch) error
	Name() string
}
