package etl

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runPipelined overlaps fetching and transforming the next batch with loading
// the current one. A single consumer drains the queue, so batches commit in
// fetch order.
func (r *Replicator) runPipelined(ctx context.Context, start Watermark, stats *Stats) error {
	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan *Batch, r.depth)

	g.Go(func() error {
		defer close(queue)
		seq := 0
		for b, err := range r.source.FetchBatches(gctx, start) {
			seq++
			if err != nil {
				return &StageError{Stage: StageFetch, Batch: seq, Err: err}
			}
			if err := r.transformer.Transform(b); err != nil {
				return &StageError{Stage: StageTransform, Batch: b.Seq, Err: err}
			}
			select {
			case <-gctx.Done():
				return &StageError{Stage: StageFetch, Batch: b.Seq, Err: gctx.Err()}
			case queue <- b:
			}
		}
		return nil
	})

	g.Go(func() error {
		for b := range queue {
			if err := r.load(gctx, b); err != nil {
				return &StageError{Stage: StageLoad, Batch: b.Seq, Err: err}
			}
			stats.add(b)
			r.batchDone(b, stats)
		}
		return nil
	})

	return g.Wait()
}
