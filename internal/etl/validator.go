package etl

import (
	"fmt"
	"regexp"
)

const maxIdentifierLength = 128

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// ValidateIdentifier rejects names that are not safe to interpolate into SQL,
// even after quoting.
func ValidateIdentifier(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty %s", ErrInvalidIdentifier, kind)
	}
	if len(name) > maxIdentifierLength {
		return fmt.Errorf("%w: %s %q longer than %d characters", ErrInvalidIdentifier, kind, name, maxIdentifierLength)
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %s %q", ErrInvalidIdentifier, kind, name)
	}
	return nil
}

// Validate checks every identifier the table reference contributes to SQL.
func (t TableRef) Validate() error {
	if t.Schema != "" {
		if err := ValidateIdentifier("schema", t.Schema); err != nil {
			return err
		}
	}
	if err := ValidateIdentifier("table", t.Table); err != nil {
		return err
	}
	if err := ValidateIdentifier("row-id column", t.RowID); err != nil {
		return err
	}
	for _, c := range t.Columns {
		if err := ValidateIdentifier("column", c); err != nil {
			return err
		}
	}
	return nil
}

func validateColumns(cols []string) error {
	if len(cols) == 0 {
		return fmt.Errorf("%w: batch has no columns", ErrInvalidIdentifier)
	}
	for _, c := range cols {
		if err := ValidateIdentifier("column", c); err != nil {
			return err
		}
	}
	return nil
}

// MaxPipelineDepth bounds the batches buffered between fetch and insert.
const MaxPipelineDepth = 2

func validatePipelineDepth(depth int) error {
	if depth < 0 || depth > MaxPipelineDepth {
		return fmt.Errorf("pipeline depth must be between 0 and %d, got %d", MaxPipelineDepth, depth)
	}
	return nil
}
