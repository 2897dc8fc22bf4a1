package etl

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
)

// WatermarkToken marks where a custom fetch statement expects the start watermark.
const WatermarkToken = "{watermark}"

// Extractor reads a source table in row-id order.
type Extractor struct {
	conn        Conn
	ref         TableRef
	batchSize   int
	customFetch string
}

func NewExtractor(conn Conn, ref TableRef, batchSize int, customFetch string) (*Extractor, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrBatchSize, batchSize)
	}
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("source %s: %w", ref, err)
	}
	return &Extractor{
		conn:        conn,
		ref:         ref,
		batchSize:   batchSize,
		customFetch: strings.TrimSpace(customFetch),
	}, nil
}

// FirstWatermark returns a value strictly below the smallest row-id, or nil
// when the table is empty.
func (e *Extractor) FirstWatermark(ctx context.Context) (Watermark, error) {
	d := e.conn.Dialect()
	stmt := fmt.Sprintf("SELECT MIN(%s) - 1 FROM %s", d.Quote(e.ref.RowID), e.ref.qualified(d))
	return queryScalar(ctx, e.conn, stmt)
}

// LastWatermark returns the largest row-id in the source, or nil when empty.
func (e *Extractor) LastWatermark(ctx context.Context) (Watermark, error) {
	return maxRowID(ctx, e.conn, e.ref)
}

// FetchBatches issues one query and yields its result batchSize rows at a
// time, starting after start. A nil start means the first row of the table.
// The sequence ends without error when the result is exhausted.
func (e *Extractor) FetchBatches(ctx context.Context, start Watermark) iter.Seq2[*Batch, error] {
	return func(yield func(*Batch, error) bool) {
		stmt, args, ok, err := e.statement(ctx, start)
		if err != nil {
			yield(nil, err)
			return
		}
		if !ok {
			return
		}

		cur, err := e.conn.Execute(ctx, stmt, args...)
		if err != nil {
			yield(nil, fmt.Errorf("query %s: %w", e.ref, err))
			return
		}
		defer cur.Close()

		cols := cur.Columns()
		ridIdx := indexOfColumn(cols, e.ref.RowID)
		if ridIdx < 0 {
			yield(nil, fmt.Errorf("%w: %q not in %v", ErrRowIDMissing, e.ref.RowID, cols))
			return
		}

		for seq := 1; ; seq++ {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			rows, err := cur.FetchMany(e.batchSize)
			if err != nil {
				yield(nil, fmt.Errorf("fetch batch %d: %w", seq, err))
				return
			}
			if len(rows) == 0 {
				return
			}
			b := &Batch{
				Seq:     seq,
				Columns: slices.Clone(cols),
				Rows:    rows,
				Low:     normalizeWatermark(rows[0][ridIdx]),
				High:    normalizeWatermark(rows[len(rows)-1][ridIdx]),
			}
			if !yield(b, nil) {
				return
			}
		}
	}
}

// statement builds the fetch query for start. ok is false when there is
// nothing to read.
func (e *Extractor) statement(ctx context.Context, start Watermark) (stmt string, args []any, ok bool, err error) {
	d := e.conn.Dialect()

	if e.customFetch != "" {
		if !strings.Contains(e.customFetch, WatermarkToken) {
			return e.customFetch, nil, true, nil
		}
		if start == nil {
			if start, err = e.FirstWatermark(ctx); err != nil {
				return "", nil, false, fmt.Errorf("first watermark: %w", err)
			}
			if start == nil {
				return "", nil, false, nil
			}
		}
		return strings.ReplaceAll(e.customFetch, WatermarkToken, d.Placeholder(1)), []any{start}, true, nil
	}

	selectList := "*"
	if cols := e.ref.projection(); len(cols) > 0 {
		quoted := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = d.Quote(c)
		}
		selectList = strings.Join(quoted, ", ")
	}

	rid := d.Quote(e.ref.RowID)
	var where string
	if start == nil {
		where = rid + " IS NOT NULL"
	} else {
		where = rid + " > " + d.Placeholder(1)
		args = []any{start}
	}
	stmt = fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s", selectList, e.ref.qualified(d), where, rid)
	return stmt, args, true, nil
}

func maxRowID(ctx context.Context, conn Conn, ref TableRef) (Watermark, error) {
	d := conn.Dialect()
	stmt := fmt.Sprintf("SELECT MAX(%s) FROM %s", d.Quote(ref.RowID), ref.qualified(d))
	return queryScalar(ctx, conn, stmt)
}

// queryScalar returns the first column of the first row, nil for no row or NULL.
func queryScalar(ctx context.Context, conn Conn, stmt string, args ...any) (any, error) {
	cur, err := conn.Execute(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	rows, err := cur.FetchMany(1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, nil
	}
	return normalizeWatermark(rows[0][0]), nil
}

func normalizeWatermark(v any) Watermark {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
