package etl

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BartekS5/ridsync/pkg/database"
)

func openSQLite(t *testing.T, name string) *Handle {
	t.Helper()
	h, err := OpenHandle(context.Background(), database.SQLite, filepath.Join(t.TempDir(), name), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func mustExec(t *testing.T, h *Handle, stmt string, args ...any) {
	t.Helper()
	require.NoError(t, h.Exec(context.Background(), stmt, args...))
}

func createEvents(t *testing.T, h *Handle, table string) {
	t.Helper()
	mustExec(t, h, fmt.Sprintf(`CREATE TABLE %q (row_id INTEGER PRIMARY KEY, name TEXT NOT NULL, amount REAL)`, table))
}

// seedEvents inserts rows with row-ids from..to inclusive.
func seedEvents(t *testing.T, h *Handle, table string, from, to int) {
	t.Helper()
	err := h.InTx(context.Background(), func(tx Execer) error {
		for id := from; id <= to; id++ {
			stmt := fmt.Sprintf(`INSERT INTO %q (row_id, name, amount) VALUES (?, ?, ?)`, table)
			if err := tx.Exec(context.Background(), stmt, id, fmt.Sprintf("event-%d", id), float64(id)*1.5); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func queryRows(t *testing.T, h *Handle, stmt string) []Row {
	t.Helper()
	cur, err := h.Execute(context.Background(), stmt)
	require.NoError(t, err)
	defer cur.Close()

	var all []Row
	for {
		rows, err := cur.FetchMany(500)
		require.NoError(t, err)
		if len(rows) == 0 {
			return all
		}
		all = append(all, rows...)
	}
}

func rowIDs(t *testing.T, h *Handle, table string) []int64 {
	t.Helper()
	var ids []int64
	for _, r := range queryRows(t, h, fmt.Sprintf(`SELECT row_id FROM %q ORDER BY row_id`, table)) {
		ids = append(ids, r[0].(int64))
	}
	return ids
}

func countRows(t *testing.T, h *Handle, table string) int64 {
	t.Helper()
	rows := queryRows(t, h, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table))
	return rows[0][0].(int64)
}

func seq(from, to int) []int64 {
	out := make([]int64, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, int64(i))
	}
	return out
}

func eventsRef(table string) TableRef {
	return TableRef{Table: table, RowID: "row_id"}
}

// newPair returns a source and destination database, each with an events table.
func newPair(t *testing.T) (src, dst *Handle) {
	t.Helper()
	src = openSQLite(t, "source.db")
	dst = openSQLite(t, "destination.db")
	createEvents(t, src, "test_read")
	createEvents(t, dst, "test_write")
	return src, dst
}
