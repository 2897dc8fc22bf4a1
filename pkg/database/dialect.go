package database

import (
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

// Dialect captures the per-engine SQL differences the replicator has to care
// about: which database/sql driver to use, how identifiers are quoted, how bind
// parameters are written and how a table is cleared.
type Dialect struct {
	Name       string
	DriverName string
	// MaxParams is the largest number of bind parameters one statement may carry.
	MaxParams int
	// MaxRows caps the rows of one multi-row VALUES list; zero means no cap.
	MaxRows int

	quoteOpen   string
	quoteClose  string
	placeholder func(n int) string
	truncate    string
}

var (
	Postgres = Dialect{
		Name:        "postgres",
		DriverName:  "pgx",
		MaxParams:   65535,
		quoteOpen:   `"`,
		quoteClose:  `"`,
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		truncate:    "TRUNCATE TABLE %s",
	}

	MySQL = Dialect{
		Name:        "mysql",
		DriverName:  "mysql",
		MaxParams:   65535,
		quoteOpen:   "`",
		quoteClose:  "`",
		placeholder: func(int) string { return "?" },
		truncate:    "TRUNCATE TABLE %s",
	}

	SQLServer = Dialect{
		Name:        "sqlserver",
		DriverName:  "sqlserver",
		MaxParams:   2100,
		MaxRows:     1000,
		quoteOpen:   "[",
		quoteClose:  "]",
		placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
		truncate:    "TRUNCATE TABLE %s",
	}

	// SQLite has no TRUNCATE; an unqualified DELETE uses the truncate optimisation.
	SQLite = Dialect{
		Name:        "sqlite",
		DriverName:  "sqlite",
		MaxParams:   32766,
		quoteOpen:   `"`,
		quoteClose:  `"`,
		placeholder: func(int) string { return "?" },
		truncate:    "DELETE FROM %s",
	}
)

var dialects = map[string]Dialect{
	"postgres":   Postgres,
	"postgresql": Postgres,
	"pgx":        Postgres,
	"mysql":      MySQL,
	"sqlserver":  SQLServer,
	"mssql":      SQLServer,
	"sqlite":     SQLite,
	"sqlite3":    SQLite,
}

// DialectByName resolves a dialect from a driver or engine name.
func DialectByName(name string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Dialect{}, fmt.Errorf("unsupported driver %q", name)
	}
	return d, nil
}

// Quote wraps an identifier in the dialect's quote characters, doubling any
// embedded closing quote.
func (d Dialect) Quote(ident string) string {
	escaped := strings.ReplaceAll(ident, d.quoteClose, d.quoteClose+d.quoteClose)
	return d.quoteOpen + escaped + d.quoteClose
}

// QualifiedName returns schema.table quoted; an empty schema yields the table alone.
func (d Dialect) QualifiedName(schema, table string) string {
	if schema == "" {
		return d.Quote(table)
	}
	return d.Quote(schema) + "." + d.Quote(table)
}

// Placeholder returns the n-th (1-based) bind parameter marker.
func (d Dialect) Placeholder(n int) string {
	return d.placeholder(n)
}

func (d Dialect) TruncateStatement(qualifiedName string) string {
	return fmt.Sprintf(d.truncate, qualifiedName)
}

// RowsPerInsert is how many rows of width ncols fit in one INSERT statement.
func (d Dialect) RowsPerInsert(ncols int) int {
	if ncols <= 0 {
		return 0
	}
	n := d.MaxParams / ncols
	if d.MaxRows > 0 && n > d.MaxRows {
		n = d.MaxRows
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (d Dialect) String() string { return d.Name }
