package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/ghalamif/machinelink/internal/domain"
	"github.com/ghalamif/machinelink/internal/ports"
)

type TimescaleSink struct {
	db        *sql.DB
	tableName string
}

// NewTimescaleSink writes into table, which may be schema qualified
// ("metrics.samples"). Each part is quoted as an identifier.
func NewTimescaleSink(db *sql.DB, table string) *TimescaleSink {
	return &TimescaleSink{db: db, tableName: quoteTable(table)}
}

func quoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

// WriteBatch inserts the batch in one statement. The bucket is stored as a
// column so several pipelines can share one hypertable. Tags and fields are
// sent as JSON text for jsonb columns.
func (t *TimescaleSink) WriteBatch(ctx context.Context, bucket string, batch domain.Batch) error {
	if len(batch) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (bucket, measurement, tags, fields, ts) VALUES ")

	args := make([]any, 0, len(batch)*5)
	for i, s := range batch {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5))

		tags, err := json.Marshal(s.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}
		fields, err := json.Marshal(s.Fields)
		if err != nil {
			return fmt.Errorf("marshal fields: %w", err)
		}

		args = append(args,
			bucket,
			s.Measurement,
			string(tags),
			string(fields),
			s.Timestamp,
		)
	}

	b.WriteString(" ON CONFLICT (bucket, measurement, ts) DO NOTHING")

	_, err := t.db.ExecContext(ctx, b.String(), args...)
	return err
}

var _ ports.Sink = (*TimescaleSink)(nil)
