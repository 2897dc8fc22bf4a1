package etl

import (
	"context"
	"iter"

	"github.com/BartekS5/ridsync/pkg/database"
)

// Cursor reads the result of one statement a slice at a time.
type Cursor interface {
	Columns() []string
	// FetchMany returns up to n rows; an empty slice means the result is exhausted.
	FetchMany(n int) ([]Row, error)
	Close() error
}

type Execer interface {
	Exec(ctx context.Context, stmt string, args ...any) error
}

// Conn is a single live database connection.
type Conn interface {
	Execer
	Dialect() database.Dialect
	Execute(ctx context.Context, stmt string, args ...any) (Cursor, error)
	// InTx runs fn inside one transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(tx Execer) error) error
	Close() error
}

// Source is the extraction side of a run.
type Source interface {
	FirstWatermark(ctx context.Context) (Watermark, error)
	LastWatermark(ctx context.Context) (Watermark, error)
	FetchBatches(ctx context.Context, start Watermark) iter.Seq2[*Batch, error]
}

// Sink is the load side of a run.
type Sink interface {
	LastWatermark(ctx context.Context) (Watermark, error)
	InsertBatch(ctx context.Context, b *Batch) error
	Truncate(ctx context.Context) error
}
