package etl

import (
	"context"
	"fmt"
	"strings"

	"github.com/BartekS5/ridsync/pkg/database"
)

// Loader writes batches into the destination table.
type Loader struct {
	conn Conn
	ref  TableRef
}

func NewLoader(conn Conn, ref TableRef) (*Loader, error) {
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("destination %s: %w", ref, err)
	}
	return &Loader{conn: conn, ref: ref}, nil
}

// LastWatermark returns the destination's largest row-id, or nil when empty.
func (l *Loader) LastWatermark(ctx context.Context) (Watermark, error) {
	return maxRowID(ctx, l.conn, l.ref)
}

func (l *Loader) Truncate(ctx context.Context) error {
	d := l.conn.Dialect()
	if err := l.conn.Exec(ctx, d.TruncateStatement(l.ref.qualified(d))); err != nil {
		return fmt.Errorf("truncate %s: %w", l.ref, err)
	}
	return nil
}

// InsertBatch inserts every row of b in one transaction. Large batches are
// split into several statements to stay under the driver's parameter limit.
func (l *Loader) InsertBatch(ctx context.Context, b *Batch) error {
	if b.Len() == 0 {
		return nil
	}
	if err := validateColumns(b.Columns); err != nil {
		return err
	}
	width := len(b.Columns)
	for i, r := range b.Rows {
		if len(r) != width {
			return fmt.Errorf("%w: row %d has %d values for %d columns", ErrArityMismatch, i, len(r), width)
		}
	}

	d := l.conn.Dialect()
	chunk := d.RowsPerInsert(width)
	return l.conn.InTx(ctx, func(tx Execer) error {
		for start := 0; start < len(b.Rows); start += chunk {
			end := min(start+chunk, len(b.Rows))
			stmt, args := buildInsert(d, l.ref.qualified(d), b.Columns, b.Rows[start:end])
			if err := tx.Exec(ctx, stmt, args...); err != nil {
				return fmt.Errorf("insert into %s: %w", l.ref, err)
			}
		}
		return nil
	})
}

func buildInsert(d database.Dialect, table string, cols []string, rows []Row) (string, []any) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	sb.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.Quote(c))
	}
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(cols))
	n := 1
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j := range cols {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.Placeholder(n))
			n++
		}
		sb.WriteByte(')')
		args = append(args, r...)
	}
	return sb.String(), args
}
