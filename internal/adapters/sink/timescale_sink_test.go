package sink

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ghalamif/machinelink/internal/domain"
)

func TestTimescaleSinkWriteBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "samples")
	ts := time.Now()

	batch := domain.Batch{
		domain.NewSample("machine_1",
			map[string]string{"sensor_type": "temperature"},
			map[string]float64{"temperature_1": 42},
			ts),
		domain.NewSample("machine_1", nil, map[string]float64{"temperature_1": 43}, ts.Add(time.Millisecond)),
	}

	expectedQuery := regexp.QuoteMeta(`INSERT INTO "samples" (bucket, measurement, tags, fields, ts) VALUES ($1,$2,$3,$4,$5),($6,$7,$8,$9,$10) ON CONFLICT (bucket, measurement, ts) DO NOTHING`)
	mock.ExpectExec(expectedQuery).
		WithArgs(
			"plant", "machine_1", `{"sensor_type":"temperature"}`, `{"temperature_1":42}`, ts,
			"plant", "machine_1", `null`, sqlmock.AnyArg(), ts.Add(time.Millisecond),
		).
		WillReturnResult(sqlmock.NewResult(2, 2))

	if err := sink.WriteBatch(context.Background(), "plant", batch); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkWriteBatchError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	boom := errors.New("connection reset")
	mock.ExpectExec(`INSERT INTO "samples"`).WillReturnError(boom)

	sink := NewTimescaleSink(db, "samples")
	batch := domain.Batch{{Measurement: "machine_1", Timestamp: time.Now()}}
	if err := sink.WriteBatch(context.Background(), "plant", batch); !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
}

func TestTimescaleSinkWriteBatchNoSamples(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "samples")
	if err := sink.WriteBatch(context.Background(), "plant", nil); err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkQuotesTableName(t *testing.T) {
	cases := map[string]string{
		"samples":                     `"samples"`,
		"metrics.samples":             `"metrics"."samples"`,
		`samples; DROP TABLE users--`: `"samples; DROP TABLE users--"`,
		`odd"name`:                    `"odd""name"`,
	}
	for in, want := range cases {
		if got := quoteTable(in); got != want {
			t.Fatalf("quoteTable(%q) = %s, want %s", in, got, want)
		}
	}

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "samples; DROP TABLE users--" (bucket`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sink := NewTimescaleSink(db, "samples; DROP TABLE users--")
	batch := domain.Batch{{Measurement: "machine_1", Timestamp: time.Now()}}
	if err := sink.WriteBatch(context.Background(), "plant", batch); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkName(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	sink := NewTimescaleSink(db, "samples")
	if sink.Name() != "timescaledb" {
		t.Fatalf("expected sink name timescaledb, got %s", sink.Name())
	}
}
