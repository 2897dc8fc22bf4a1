package cli

import (
	"github.com/spf13/cobra"
)

type ReplicateOptions struct {
	JobFile string
	// BatchSize and PipelineDepth override the job file when set.
	BatchSize     int
	PipelineDepth int
	DryRun        bool
}

func newReplicateCmd(a *app) *cobra.Command {
	opts := &ReplicateOptions{}

	cmd := &cobra.Command{
		Use:   "replicate",
		Short: "Copy rows from the source table to the destination table",
		Long: `Copy rows from the source table to the destination table. Without a
sub-command the job file's policy is used.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runReplication(c, a, opts, "")
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.JobFile, "job", "f", "job.yaml", "Path to job file")
	cmd.PersistentFlags().IntVarP(&opts.BatchSize, "batch-size", "b", 0, "Rows per batch (overrides the job file)")
	cmd.PersistentFlags().IntVar(&opts.PipelineDepth, "pipeline-depth", -1, "Batches in flight between fetch and insert, 0-2 (overrides the job file)")
	cmd.PersistentFlags().BoolVar(&opts.DryRun, "dry-run", false, "Extract and transform only; do not truncate or insert")

	full := &cobra.Command{
		Use:   "full",
		Short: "Truncate the destination and reload every source row",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runReplication(c, a, opts, "full")
		},
	}

	incremental := &cobra.Command{
		Use:   "incremental",
		Short: "Load source rows beyond the destination's largest row-id",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runReplication(c, a, opts, "incremental")
		},
	}

	cmd.AddCommand(full, incremental)
	return cmd
}

func newWatermarksCmd(a *app) *cobra.Command {
	var jobFile string

	cmd := &cobra.Command{
		Use:   "watermarks",
		Short: "Show source and destination watermarks for a job",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runWatermarks(c, a, jobFile)
		},
	}
	cmd.Flags().StringVarP(&jobFile, "job", "f", "job.yaml", "Path to job file")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var jobName string
	var limit int64

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the MongoDB journal",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runHistory(c, a, jobName, limit)
		},
	}
	cmd.Flags().StringVarP(&jobName, "name", "n", "", "Only show runs of this job")
	cmd.Flags().Int64VarP(&limit, "limit", "l", 20, "Maximum number of runs")
	return cmd
}
