// Package journal keeps an audit trail of replication runs. It is write-mostly
// and never consulted for progress; the destination table is the checkpoint.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/BartekS5/ridsync/internal/etl"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// RunRecord is one journal entry.
type RunRecord struct {
	RunID          string    `bson:"run_id"`
	Job            string    `bson:"job"`
	Policy         string    `bson:"policy"`
	Source         string    `bson:"source"`
	Destination    string    `bson:"destination"`
	StartWatermark any       `bson:"start_watermark"`
	LastWatermark  any       `bson:"last_watermark"`
	Batches        int       `bson:"batches"`
	Rows           int64     `bson:"rows"`
	DryRun         bool      `bson:"dry_run"`
	StartedAt      time.Time `bson:"started_at"`
	FinishedAt     time.Time `bson:"finished_at"`
	DurationMS     int64     `bson:"duration_ms"`
	Status         string    `bson:"status"`
	Error          string    `bson:"error,omitempty"`
}

type Journal interface {
	Record(ctx context.Context, rec RunRecord) error
}

// NewRecord builds the entry for a finished run.
func NewRecord(job, source, destination string, stats etl.Stats, dryRun bool, runErr error) RunRecord {
	rec := RunRecord{
		RunID:          stats.RunID,
		Job:            job,
		Policy:         stats.Policy,
		Source:         source,
		Destination:    destination,
		StartWatermark: storable(stats.Start),
		LastWatermark:  storable(stats.LastLoaded),
		Batches:        stats.Batches,
		Rows:           stats.Rows,
		DryRun:         dryRun,
		StartedAt:      stats.StartedAt.UTC(),
		FinishedAt:     stats.FinishedAt.UTC(),
		DurationMS:     stats.Duration().Milliseconds(),
		Status:         StatusSucceeded,
	}
	if runErr != nil {
		rec.Status = StatusFailed
		rec.Error = runErr.Error()
	}
	return rec
}

// storable keeps watermark types BSON can encode directly and stringifies the rest.
func storable(v any) any {
	switch w := v.(type) {
	case nil, string, bool, int32, int64, float64, time.Time:
		return w
	case int:
		return int64(w)
	case []byte:
		return string(w)
	default:
		return fmt.Sprintf("%v", w)
	}
}

// Nop discards records; used when no journal is configured.
type Nop struct{}

func (Nop) Record(context.Context, RunRecord) error { return nil }
