package etl

import (
	"fmt"
	"strings"

	"github.com/BartekS5/ridsync/pkg/utils"
)

// RenameMode selects how a rename list is applied to fetched columns.
type RenameMode string

const (
	// RenameByName relabels each listed column found among the fetched ones.
	RenameByName RenameMode = "by-name"
	// RenamePositional replaces the whole column list with the target names,
	// in list order, regardless of the fetched names.
	RenamePositional RenameMode = "positional"
)

func ParseRenameMode(s string) (RenameMode, error) {
	switch RenameMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", RenameByName:
		return RenameByName, nil
	case RenamePositional:
		return RenamePositional, nil
	default:
		return "", fmt.Errorf("unknown rename mode %q", s)
	}
}

type ColumnRename struct {
	From string
	To   string
}

// RowTransformer maps one row to the row written to the destination.
type RowTransformer func(Row) (Row, error)

// Transformer is the optional stage between fetch and load.
type Transformer struct {
	Rename []ColumnRename
	Mode   RenameMode
	Row    RowTransformer
}

func (t *Transformer) empty() bool {
	return t == nil || (len(t.Rename) == 0 && t.Row == nil)
}

// Transform rewrites b in place: first its column list, then every row.
func (t *Transformer) Transform(b *Batch) error {
	if t.empty() {
		return nil
	}
	if len(t.Rename) > 0 {
		cols, err := t.renameColumns(b.Columns)
		if err != nil {
			return err
		}
		b.Columns = cols
	}
	if t.Row != nil {
		for i, r := range b.Rows {
			out, err := t.Row(r)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			b.Rows[i] = out
		}
	}
	return nil
}

func (t *Transformer) renameColumns(cols []string) ([]string, error) {
	if t.Mode == RenamePositional {
		if len(t.Rename) != len(cols) {
			return nil, fmt.Errorf("%w: %d names for %d columns", ErrRenameMismatch, len(t.Rename), len(cols))
		}
		out := make([]string, len(t.Rename))
		for i, r := range t.Rename {
			out[i] = r.To
		}
		return out, nil
	}

	out := make([]string, len(cols))
	copy(out, cols)
	for _, r := range t.Rename {
		idx := indexOfColumn(cols, r.From)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q not in %v", ErrRenameMismatch, r.From, cols)
		}
		out[idx] = r.To
	}
	return out, nil
}

// NewCastTransformer compiles per-column casts against the source projection.
// The projection must be explicit so column positions are known up front.
func NewCastTransformer(ref TableRef, casts map[string]string) (RowTransformer, error) {
	if len(casts) == 0 {
		return nil, nil
	}
	cols := ref.projection()
	if len(cols) == 0 {
		return nil, fmt.Errorf("casts need an explicit column list for %s", ref)
	}

	converters := make(map[int]utils.Converter, len(casts))
	for col, castType := range casts {
		idx := indexOfColumn(cols, col)
		if idx < 0 {
			return nil, fmt.Errorf("cast for unknown column %q", col)
		}
		conv, err := utils.ConverterFor(castType)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		converters[idx] = conv
	}

	return func(r Row) (Row, error) {
		out := make(Row, len(r))
		copy(out, r)
		for idx, conv := range converters {
			if idx >= len(out) {
				return nil, fmt.Errorf("%w: cast column %d beyond row width %d", ErrArityMismatch, idx, len(out))
			}
			v, err := conv(out[idx])
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", cols[idx], err)
			}
			out[idx] = v
		}
		return out, nil
	}, nil
}
