package etl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, e *Extractor, start Watermark) []*Batch {
	t.Helper()
	var out []*Batch
	for b, err := range e.FetchBatches(context.Background(), start) {
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func TestExtractor_Watermarks(t *testing.T) {
	h := openSQLite(t, "wm.db")
	createEvents(t, h, "events")

	e, err := NewExtractor(h, eventsRef("events"), 10, "")
	require.NoError(t, err)
	ctx := context.Background()

	first, err := e.FirstWatermark(ctx)
	require.NoError(t, err)
	assert.Nil(t, first)
	last, err := e.LastWatermark(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	seedEvents(t, h, "events", 3, 7)

	first, err = e.FirstWatermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first)
	last, err = e.LastWatermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), last)
}

func TestExtractor_FetchBatchesMonotonic(t *testing.T) {
	h := openSQLite(t, "mono.db")
	createEvents(t, h, "events")
	seedEvents(t, h, "events", 1, 10)

	e, err := NewExtractor(h, eventsRef("events"), 3, "")
	require.NoError(t, err)

	batches := collect(t, e, nil)
	require.Len(t, batches, 4)

	sizes := []int{3, 3, 3, 1}
	for i, b := range batches {
		assert.Equal(t, i+1, b.Seq)
		assert.Equal(t, sizes[i], b.Len())
		assert.Equal(t, []string{"row_id", "name", "amount"}, b.Columns)
		for _, r := range b.Rows {
			assert.Len(t, r, len(b.Columns))
		}
	}
	for i := 1; i < len(batches); i++ {
		assert.Less(t, batches[i-1].High.(int64), batches[i].Low.(int64))
	}
	assert.Equal(t, int64(1), batches[0].Low)
	assert.Equal(t, int64(10), batches[3].High)
}

func TestExtractor_FetchBatchesStrictlyAfterStart(t *testing.T) {
	h := openSQLite(t, "after.db")
	createEvents(t, h, "events")
	seedEvents(t, h, "events", 1, 10)

	e, err := NewExtractor(h, eventsRef("events"), 100, "")
	require.NoError(t, err)

	batches := collect(t, e, int64(7))
	require.Len(t, batches, 1)
	assert.Equal(t, int64(8), batches[0].Low)
	assert.Equal(t, 3, batches[0].Len())

	assert.Empty(t, collect(t, e, int64(10)))
}

func TestExtractor_ProjectionAddsRowID(t *testing.T) {
	h := openSQLite(t, "proj.db")
	createEvents(t, h, "events")
	seedEvents(t, h, "events", 1, 2)

	ref := eventsRef("events")
	ref.Columns = []string{"name"}
	e, err := NewExtractor(h, ref, 10, "")
	require.NoError(t, err)

	batches := collect(t, e, nil)
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"name", "row_id"}, batches[0].Columns)
	assert.Equal(t, Row{"event-1", int64(1)}, batches[0].Rows[0])
	assert.Equal(t, []string{"name"}, ref.Columns)
}

func TestExtractor_CustomFetch(t *testing.T) {
	h := openSQLite(t, "custom.db")
	createEvents(t, h, "events")

	custom := `SELECT row_id, name FROM events WHERE row_id > {watermark} AND row_id % 2 = 0 ORDER BY row_id`
	e, err := NewExtractor(h, eventsRef("events"), 2, custom)
	require.NoError(t, err)

	assert.Empty(t, collect(t, e, nil), "empty table yields no batches")

	seedEvents(t, h, "events", 1, 9)

	batches := collect(t, e, nil)
	require.Len(t, batches, 2)
	assert.Equal(t, int64(2), batches[0].Low)
	assert.Equal(t, int64(8), batches[1].High)

	batches = collect(t, e, int64(4))
	require.Len(t, batches, 1)
	assert.Equal(t, int64(6), batches[0].Low)
}

func TestExtractor_CustomFetchWithoutRowID(t *testing.T) {
	h := openSQLite(t, "norid.db")
	createEvents(t, h, "events")
	seedEvents(t, h, "events", 1, 2)

	e, err := NewExtractor(h, eventsRef("events"), 2, `SELECT name FROM events`)
	require.NoError(t, err)

	var got error
	for _, err := range e.FetchBatches(context.Background(), nil) {
		got = err
	}
	assert.ErrorIs(t, got, ErrRowIDMissing)
}

func TestExtractor_TextRowID(t *testing.T) {
	h := openSQLite(t, "ts.db")
	mustExec(t, h, `CREATE TABLE logs (logged_at TEXT NOT NULL, msg TEXT)`)
	for _, ts := range []string{"2024-01-03T00:00:00Z", "2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z"} {
		mustExec(t, h, `INSERT INTO logs VALUES (?, ?)`, ts, "m")
	}

	e, err := NewExtractor(h, TableRef{Table: "logs", RowID: "logged_at"}, 2, "")
	require.NoError(t, err)

	batches := collect(t, e, nil)
	require.Len(t, batches, 2)
	assert.Equal(t, "2024-01-01T00:00:00Z", batches[0].Low)
	assert.Equal(t, "2024-01-03T00:00:00Z", batches[1].High)

	batches = collect(t, e, "2024-01-02T00:00:00Z")
	require.Len(t, batches, 1)
	assert.Equal(t, 1, batches[0].Len())
}

func TestNewExtractor_Rejects(t *testing.T) {
	h := openSQLite(t, "bad.db")

	_, err := NewExtractor(h, eventsRef("events"), 0, "")
	assert.ErrorIs(t, err, ErrBatchSize)

	_, err = NewExtractor(h, eventsRef("events; DROP TABLE x"), 10, "")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestExtractor_StopsWhenConsumerBreaks(t *testing.T) {
	h := openSQLite(t, "break.db")
	createEvents(t, h, "events")
	seedEvents(t, h, "events", 1, 10)

	e, err := NewExtractor(h, eventsRef("events"), 2, "")
	require.NoError(t, err)

	n := 0
	for _, err := range e.FetchBatches(context.Background(), nil) {
		require.NoError(t, err)
		n++
		break
	}
	assert.Equal(t, 1, n)

	// The cursor was closed, so the connection is free for the next query.
	assert.Len(t, collect(t, e, int64(8)), 1)
}

func TestExtractor_BatchSizeLargerThanTable(t *testing.T) {
	h := openSQLite(t, "huge-batch.db")
	createEvents(t, h, "events")
	seedEvents(t, h, "events", 1, 3)

	e, err := NewExtractor(h, eventsRef("events"), 1<<40, "")
	require.NoError(t, err)

	batches := collect(t, e, nil)
	require.Len(t, batches, 1)
	assert.Equal(t, 3, batches[0].Len())
	assert.Equal(t, int64(3), batches[0].High)
}
