package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/BartekS5/ridsync/pkg/logger"
)

// Endpoint is one side of a replication: a live connection and the table on it.
type Endpoint struct {
	Conn Conn
	Ref  TableRef
}

type ReplicationConfig struct {
	Source      Endpoint
	Destination Endpoint
	BatchSize   int
	// CustomFetch replaces the generated extraction query. It may contain
	// WatermarkToken where the start watermark should be bound.
	CustomFetch    string
	Rename         []ColumnRename
	RenameMode     RenameMode
	RowTransformer RowTransformer
	// PipelineDepth 0 runs fetch and insert strictly in turn; 1 or 2 overlaps
	// them with that many batches in flight.
	PipelineDepth int
	DryRun        bool
}

// Replicator moves rows from one table to another for a given policy.
// The caller owns both connections and closes them after Run.
type Replicator struct {
	source      Source
	sink        Sink
	transformer *Transformer
	srcRef      TableRef
	dstRef      TableRef
	batchSize   int
	depth       int
	dryRun      bool

	entry *logrus.Entry
}

func NewReplicator(cfg ReplicationConfig) (*Replicator, error) {
	if cfg.Source.Conn == nil || cfg.Destination.Conn == nil {
		return nil, fmt.Errorf("source and destination connections are required")
	}
	ext, err := NewExtractor(cfg.Source.Conn, cfg.Source.Ref, cfg.BatchSize, cfg.CustomFetch)
	if err != nil {
		return nil, err
	}
	ldr, err := NewLoader(cfg.Destination.Conn, cfg.Destination.Ref)
	if err != nil {
		return nil, err
	}
	return newReplicator(ext, ldr, cfg)
}

func newReplicator(src Source, sink Sink, cfg ReplicationConfig) (*Replicator, error) {
	if err := validatePipelineDepth(cfg.PipelineDepth); err != nil {
		return nil, err
	}
	mode := cfg.RenameMode
	if mode == "" {
		mode = RenameByName
	}
	return &Replicator{
		source: src,
		sink:   sink,
		transformer: &Transformer{
			Rename: cfg.Rename,
			Mode:   mode,
			Row:    cfg.RowTransformer,
		},
		srcRef:    cfg.Source.Ref,
		dstRef:    cfg.Destination.Ref,
		batchSize: cfg.BatchSize,
		depth:     cfg.PipelineDepth,
		dryRun:    cfg.DryRun,
	}, nil
}

func (r *Replicator) log() *logrus.Entry {
	if r.entry == nil {
		return logger.WithFields(logger.Fields{"source": r.srcRef.String(), "destination": r.dstRef.String()})
	}
	return r.entry
}

// Run discovers the start watermark through p and then copies batches until
// the source is exhausted. The returned Stats describe what was committed,
// including when err is not nil.
func (r *Replicator) Run(ctx context.Context, p Policy) (Stats, error) {
	stats := Stats{
		RunID:     uuid.NewString(),
		Policy:    p.Name(),
		StartedAt: time.Now(),
	}
	r.entry = logger.WithFields(logger.Fields{
		"run_id":      stats.RunID,
		"policy":      stats.Policy,
		"source":      r.srcRef.String(),
		"destination": r.dstRef.String(),
	})
	defer func() { r.entry = nil }()

	start, err := p.DiscoverStart(ctx, r)
	if err != nil {
		stats.FinishedAt = time.Now()
		r.entry.Errorf("Could not determine start watermark: %v", err)
		return stats, err
	}
	stats.Start = start

	r.entry.Infof("Starting replication. Batch Size: %d, Start Watermark: %v, Pipeline Depth: %d, DryRun: %v",
		r.batchSize, start, r.depth, r.dryRun)

	if r.depth > 0 {
		err = r.runPipelined(ctx, start, &stats)
	} else {
		err = r.runSequential(ctx, start, &stats)
	}
	stats.FinishedAt = time.Now()

	if err != nil {
		r.entry.Errorf("Replication aborted after %d batches (%d rows): %v", stats.Batches, stats.Rows, err)
		return stats, err
	}
	if stats.Batches == 0 {
		r.entry.Info("No new rows to replicate.")
	}
	r.entry.Infof("Replication finished. Rows: %d. Batches: %d. Last Watermark: %v. Rate: %.2f rows/sec",
		stats.Rows, stats.Batches, stats.LastLoaded, stats.Rate())
	return stats, nil
}

func (r *Replicator) runSequential(ctx context.Context, start Watermark, stats *Stats) error {
	seq := 0
	for b, err := range r.source.FetchBatches(ctx, start) {
		seq++
		if err != nil {
			return &StageError{Stage: StageFetch, Batch: seq, Err: err}
		}
		if err := r.transformer.Transform(b); err != nil {
			return &StageError{Stage: StageTransform, Batch: b.Seq, Err: err}
		}
		if err := r.load(ctx, b); err != nil {
			return &StageError{Stage: StageLoad, Batch: b.Seq, Err: err}
		}
		stats.add(b)
		r.batchDone(b, stats)
	}
	return nil
}

func (r *Replicator) load(ctx context.Context, b *Batch) error {
	if r.dryRun {
		r.log().Infof("[DRY RUN] Would load %d rows (%v..%v)", b.Len(), b.Low, b.High)
		return nil
	}
	return r.sink.InsertBatch(ctx, b)
}

func (r *Replicator) batchDone(b *Batch, stats *Stats) {
	r.log().Infof("Batch %d done (%v..%v). Total: %d. Rate: %.2f rows/sec",
		b.Seq, b.Low, b.High, stats.Rows, stats.Rate())
}
