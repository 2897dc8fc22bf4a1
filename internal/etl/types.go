package etl

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BartekS5/ridsync/pkg/database"
)

// Row is one fetched tuple. Values are whatever the driver returns.
type Row []any

// Watermark is a value of the row-id column. nil means "no watermark".
type Watermark = any

// Batch is a group of rows sharing one column list. Low and High are the
// row-id values of the first and last fetched row, taken before any transform.
type Batch struct {
	Seq     int
	Columns []string
	Rows    []Row
	Low     Watermark
	High    Watermark
}

func (b *Batch) Len() int { return len(b.Rows) }

// TableRef names a table and its row-id column. Columns optionally restricts
// the projection; the row-id column is appended when it is missing.
type TableRef struct {
	Schema  string
	Table   string
	RowID   string
	Columns []string
}

func (t TableRef) String() string {
	if t.Schema == "" {
		return t.Table
	}
	return t.Schema + "." + t.Table
}

func (t TableRef) qualified(d database.Dialect) string {
	return d.QualifiedName(t.Schema, t.Table)
}

// projection returns the select list, never modifying t.Columns.
func (t TableRef) projection() []string {
	if len(t.Columns) == 0 {
		return nil
	}
	cols := make([]string, 0, len(t.Columns)+1)
	cols = append(cols, t.Columns...)
	if indexOfColumn(cols, t.RowID) < 0 {
		cols = append(cols, t.RowID)
	}
	return cols
}

func indexOfColumn(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	for i, c := range cols {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrArityMismatch     = errors.New("column/value count mismatch")
	ErrRenameMismatch    = errors.New("rename mapping does not match fetched columns")
	ErrBatchSize         = errors.New("batch size must be positive")
	ErrRowIDMissing      = errors.New("row-id column missing from fetched columns")
	ErrHandleClosed      = errors.New("connection handle is closed")
)

// Stage names the part of a run that failed.
type Stage string

const (
	StageDiscover  Stage = "discover"
	StageTruncate  Stage = "truncate"
	StageFetch     Stage = "fetch"
	StageTransform Stage = "transform"
	StageLoad      Stage = "load"
)

// StageError wraps the failure that aborted a run.
type StageError struct {
	Stage Stage
	Batch int
	Err   error
}

func (e *StageError) Error() string {
	if e.Batch > 0 {
		return fmt.Sprintf("%s batch %d: %v", e.Stage, e.Batch, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Stats summarises one run. It is returned on failure too, describing what
// was committed before the error.
type Stats struct {
	RunID      string
	Policy     string
	Start      Watermark
	LastLoaded Watermark
	Batches    int
	Rows       int64
	StartedAt  time.Time
	FinishedAt time.Time
}

func (s Stats) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Rate is rows per second over the run so far.
func (s Stats) Rate() float64 {
	d := s.Duration().Seconds()
	if d <= 0 {
		return 0
	}
	return float64(s.Rows) / d
}

func (s *Stats) add(b *Batch) {
	s.Batches++
	s.Rows += int64(b.Len())
	s.LastLoaded = b.High
}
