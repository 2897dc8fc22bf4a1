package etl

import (
	"context"
	"fmt"
	"strings"
)

// Policy decides where a run starts and what happens to the destination
// before the first batch.
type Policy interface {
	Name() string
	DiscoverStart(ctx context.Context, r *Replicator) (Watermark, error)
}

// Full clears the destination and reloads the source from its first row.
type Full struct{}

func (Full) Name() string { return "full" }

func (Full) DiscoverStart(ctx context.Context, r *Replicator) (Watermark, error) {
	if r.dryRun {
		r.log().Infof("[DRY RUN] Would truncate %s", r.dstRef)
		return nil, nil
	}
	if err := r.sink.Truncate(ctx); err != nil {
		return nil, &StageError{Stage: StageTruncate, Err: err}
	}
	return nil, nil
}

// Incremental loads only source rows beyond the destination's largest row-id.
// An empty destination starts from the first source row.
type Incremental struct{}

func (Incremental) Name() string { return "incremental" }

func (Incremental) DiscoverStart(ctx context.Context, r *Replicator) (Watermark, error) {
	wm, err := r.sink.LastWatermark(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageDiscover, Err: err}
	}
	return wm, nil
}

func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "full":
		return Full{}, nil
	case "", "incremental":
		return Incremental{}, nil
	default:
		return nil, fmt.Errorf("unknown replication policy %q", name)
	}
}
