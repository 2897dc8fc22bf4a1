package etl

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/BartekS5/ridsync/pkg/database"
)

// Handle is a Conn backed by one pinned database/sql connection.
type Handle struct {
	dialect database.Dialect
	conn    *sql.Conn
	// pool is set when the handle opened the pool itself and must close it.
	pool *sql.DB

	// done is cancelled by Close so in-flight statements fail instead of
	// holding the connection open.
	done   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func newHandle(d database.Dialect, conn *sql.Conn, pool *sql.DB) *Handle {
	done, cancel := context.WithCancel(context.Background())
	return &Handle{dialect: d, conn: conn, pool: pool, done: done, cancel: cancel}
}

// OpenHandle opens a pool for dsn, pins one connection and owns both.
func OpenHandle(ctx context.Context, d database.Dialect, dsn string, timeout time.Duration) (*Handle, error) {
	db, err := database.Open(ctx, d, dsn, timeout)
	if err != nil {
		return nil, err
	}
	conn, err := database.Connect(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return newHandle(d, conn, db), nil
}

// NewHandle wraps a connection the caller already holds. Close releases the
// connection back to its pool but leaves the pool open.
func NewHandle(d database.Dialect, conn *sql.Conn) *Handle {
	return newHandle(d, conn, nil)
}

func (h *Handle) Dialect() database.Dialect { return h.dialect }

func (h *Handle) check() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHandleClosed
	}
	return nil
}

// bind derives a context that is also cancelled when the handle is closed.
func (h *Handle) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(h.done, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (h *Handle) Execute(ctx context.Context, stmt string, args ...any) (Cursor, error) {
	if err := h.check(); err != nil {
		return nil, err
	}
	qctx, release := h.bind(ctx)
	rows, err := h.conn.QueryContext(qctx, stmt, args...)
	if err != nil {
		release()
		return nil, err
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		release()
		return nil, err
	}
	return &sqlCursor{h: h, rows: rows, cols: cols, release: release}, nil
}

func (h *Handle) Exec(ctx context.Context, stmt string, args ...any) error {
	if err := h.check(); err != nil {
		return err
	}
	ctx, release := h.bind(ctx)
	defer release()
	_, err := h.conn.ExecContext(ctx, stmt, args...)
	return err
}

func (h *Handle) InTx(ctx context.Context, fn func(tx Execer) error) error {
	if err := h.check(); err != nil {
		return err
	}
	ctx, release := h.bind(ctx)
	defer release()
	tx, err := h.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(txExecer{tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close aborts any statement still running on the handle, then releases the
// connection, and the pool when the handle owns it. Closing twice is a no-op.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.cancel()
	err := h.conn.Close()
	if h.pool != nil {
		if perr := h.pool.Close(); err == nil {
			err = perr
		}
	}
	return err
}

type txExecer struct {
	tx *sql.Tx
}

func (t txExecer) Exec(ctx context.Context, stmt string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, stmt, args...)
	return err
}

type sqlCursor struct {
	h       *Handle
	rows    *sql.Rows
	cols    []string
	release context.CancelFunc
	done    bool
}

// initialRows bounds the up-front allocation of one FetchMany result.
const initialRows = 1024

func (c *sqlCursor) Columns() []string { return c.cols }

func (c *sqlCursor) FetchMany(n int) ([]Row, error) {
	if n <= 0 {
		return nil, ErrBatchSize
	}
	if err := c.h.check(); err != nil {
		return nil, err
	}
	if c.done {
		return nil, nil
	}
	out := make([]Row, 0, min(n, initialRows))
	for len(out) < n {
		if !c.rows.Next() {
			c.done = true
			if err := c.rows.Err(); err != nil {
				if cerr := c.h.check(); cerr != nil {
					return nil, cerr
				}
				return nil, err
			}
			break
		}
		values := make(Row, len(c.cols))
		ptrs := make([]any, len(c.cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := c.rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, values)
	}
	return out, nil
}

func (c *sqlCursor) Close() error {
	err := c.rows.Close()
	c.release()
	return err
}
