package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/BartekS5/ridsync/internal/config"
	"github.com/BartekS5/ridsync/internal/etl"
	"github.com/BartekS5/ridsync/internal/journal"
	"github.com/BartekS5/ridsync/pkg/database"
	"github.com/BartekS5/ridsync/pkg/logger"
	"github.com/BartekS5/ridsync/pkg/models"
)

// runReplication runs the job in opts.JobFile. An empty policyName falls back
// to the job's own policy.
func runReplication(cmd *cobra.Command, a *app, opts *ReplicateOptions, policyName string) error {
	ctx := cmd.Context()

	job, err := config.LoadJob(opts.JobFile)
	if err != nil {
		return err
	}
	if opts.BatchSize > 0 {
		job.Source.BatchSize = opts.BatchSize
	}
	if opts.PipelineDepth >= 0 {
		job.PipelineDepth = opts.PipelineDepth
	}

	if policyName == "" {
		policyName = job.Policy
	}
	policy, err := etl.PolicyByName(policyName)
	if err != nil {
		return err
	}

	src, err := openHandle(ctx, job.Source, a.settings.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	defer src.Close()

	dst, err := openHandle(ctx, job.Destination, a.settings.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	defer dst.Close()

	cfg, err := replicationConfig(job, src, dst, opts.DryRun)
	if err != nil {
		return err
	}
	r, err := etl.NewReplicator(cfg)
	if err != nil {
		return err
	}

	jr, closeJournal := openJournal(ctx, a.settings)
	defer closeJournal()

	logger.Infof("Starting %s replication for job %s...", policy.Name(), job.Name)
	stats, runErr := r.Run(ctx, policy)

	rec := journal.NewRecord(job.Name, cfg.Source.Ref.String(), cfg.Destination.Ref.String(), stats, opts.DryRun, runErr)
	if err := jr.Record(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warnf("Could not record run in journal: %v", err)
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Replicated %d rows in %d batches (start %v, last %v) in %s.\n",
		stats.Rows, stats.Batches, stats.Start, stats.LastLoaded, stats.Duration().Round(time.Millisecond))
	return nil
}

func runWatermarks(cmd *cobra.Command, a *app, jobFile string) error {
	ctx := cmd.Context()

	job, err := config.LoadJob(jobFile)
	if err != nil {
		return err
	}

	src, err := openHandle(ctx, job.Source, a.settings.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	defer src.Close()

	dst, err := openHandle(ctx, job.Destination, a.settings.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	defer dst.Close()

	ext, err := etl.NewExtractor(src, sourceRef(job), job.Source.BatchSize, job.Source.CustomFetch)
	if err != nil {
		return err
	}
	ldr, err := etl.NewLoader(dst, destinationRef(job))
	if err != nil {
		return err
	}

	first, err := ext.FirstWatermark(ctx)
	if err != nil {
		return fmt.Errorf("source first watermark: %w", err)
	}
	last, err := ext.LastWatermark(ctx)
	if err != nil {
		return fmt.Errorf("source last watermark: %w", err)
	}
	loaded, err := ldr.LastWatermark(ctx)
	if err != nil {
		return fmt.Errorf("destination last watermark: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "source first\t%s\n", display(first))
	fmt.Fprintf(w, "source last\t%s\n", display(last))
	fmt.Fprintf(w, "destination last\t%s\n", display(loaded))
	return w.Flush()
}

func runHistory(cmd *cobra.Command, a *app, jobName string, limit int64) error {
	if !a.settings.JournalEnabled() {
		return errors.New("journal is not configured; set " + config.EnvPrefix + "_MONGO_URI")
	}
	ctx := cmd.Context()

	jr, err := journal.OpenMongo(ctx, a.settings.MongoURI, a.settings.MongoDatabase, a.settings.JournalCollection, a.settings.ConnectTimeout)
	if err != nil {
		return err
	}
	defer jr.Close(context.WithoutCancel(ctx))

	runs, err := jr.Recent(ctx, jobName, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tJOB\tPOLICY\tSTATUS\tROWS\tLAST WATERMARK\tRUN ID")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.StartedAt.Format(time.RFC3339), r.Job, r.Policy, r.Status, r.Rows, display(r.LastWatermark), r.RunID)
	}
	return w.Flush()
}

func openHandle(ctx context.Context, ts models.TableSpec, timeout time.Duration) (*etl.Handle, error) {
	d, err := database.DialectByName(ts.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := config.ResolveDSN(ts.Conn)
	if err != nil {
		return nil, err
	}
	return etl.OpenHandle(ctx, d, dsn, timeout)
}

// openJournal falls back to a no-op journal when none is configured or
// MongoDB is unreachable; the journal never blocks a run.
func openJournal(ctx context.Context, s *config.Settings) (journal.Journal, func()) {
	if !s.JournalEnabled() {
		return journal.Nop{}, func() {}
	}
	jr, err := journal.OpenMongo(ctx, s.MongoURI, s.MongoDatabase, s.JournalCollection, s.ConnectTimeout)
	if err != nil {
		logger.Warnf("Run journal disabled: %v", err)
		return journal.Nop{}, func() {}
	}
	return jr, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), s.ConnectTimeout)
		defer cancel()
		_ = jr.Close(closeCtx)
	}
}

func sourceRef(job *models.Job) etl.TableRef {
	return etl.TableRef{
		Schema:  job.Source.Schema,
		Table:   job.Source.Table,
		RowID:   job.Source.RowID,
		Columns: job.Source.Columns,
	}
}

func destinationRef(job *models.Job) etl.TableRef {
	return etl.TableRef{
		Schema: job.Destination.Schema,
		Table:  job.Destination.Table,
		RowID:  job.Destination.RowID,
	}
}

func replicationConfig(job *models.Job, src, dst etl.Conn, dryRun bool) (etl.ReplicationConfig, error) {
	mode, err := etl.ParseRenameMode(job.RenameMode)
	if err != nil {
		return etl.ReplicationConfig{}, err
	}
	srcRef := sourceRef(job)
	casts, err := etl.NewCastTransformer(srcRef, job.Casts)
	if err != nil {
		return etl.ReplicationConfig{}, err
	}

	renames := make([]etl.ColumnRename, len(job.Rename))
	for i, r := range job.Rename {
		renames[i] = etl.ColumnRename{From: r.From, To: r.To}
	}

	return etl.ReplicationConfig{
		Source:         etl.Endpoint{Conn: src, Ref: srcRef},
		Destination:    etl.Endpoint{Conn: dst, Ref: destinationRef(job)},
		BatchSize:      job.Source.BatchSize,
		CustomFetch:    job.Source.CustomFetch,
		Rename:         renames,
		RenameMode:     mode,
		RowTransformer: casts,
		PipelineDepth:  job.PipelineDepth,
		DryRun:         dryRun,
	}, nil
}

func display(v any) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%v", v)
}
