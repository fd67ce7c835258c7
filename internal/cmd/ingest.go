package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	timeago "github.com/caarlos0/timea.go"
	"github.com/spf13/cobra"

	"github.com/dotcommander/kbagent/internal/agent"
	"github.com/dotcommander/kbagent/internal/config"
	"github.com/dotcommander/kbagent/internal/present"
)

type ingestOptions struct {
	wait         bool
	pollInterval time.Duration
	timeout      time.Duration
	asJSON       bool
}

func newIngestCmd(rt *runtime) *cobra.Command {
	opts := ingestOptions{}
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Sync knowledge base data sources",
	}

	persistent := ingestCmd.PersistentFlags()
	addKnowledgeBaseFlag(persistent, &rt.cfg)
	addDataSourceFlag(persistent, &rt.cfg)
	persistent.Var(newDurationFlag(rt.cfg.Ingest.PollInterval, &opts.pollInterval), "poll-interval", usage("poll-interval"))
	persistent.Var(newDurationFlag(0, &opts.timeout), "timeout", present.StdoutStyles().FlagDesc.Render("Stop waiting after this long; 0 waits until the job ends."))
	persistent.BoolVar(&opts.asJSON, "json", false, present.StdoutStyles().FlagDesc.Render("Print the job as JSON."))

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start an ingestion job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			eff := rt.effective()
			if err := eff.Validate(config.OpIngest); err != nil {
				return err
			}
			job, err := rt.service().StartIngestion(cmd.Context(), eff)
			if err != nil {
				return remoteError(err, "Could not start the ingestion job.")
			}
			if !opts.wait {
				return printJob(cmd.OutOrStdout(), job, opts.asJSON)
			}
			if !rt.cfg.Quiet && !opts.asJSON {
				present.PrintConfirmation(rt.stderr, "started", job.ID)
			}
			return rt.waitJob(cmd, job.ID, eff, opts)
		},
	}
	startCmd.Flags().BoolVarP(&opts.wait, "wait", "w", false, present.StdoutStyles().FlagDesc.Render("Wait for the job to finish."))

	statusCmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the state of an ingestion job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			eff := rt.effective()
			if err := eff.Validate(config.OpIngest); err != nil {
				return err
			}
			job, err := rt.service().IngestionStatus(cmd.Context(), args[0], eff)
			if err != nil {
				return remoteError(err, "Could not get the ingestion job.")
			}
			return printJob(cmd.OutOrStdout(), job, opts.asJSON)
		},
	}

	waitCmd := &cobra.Command{
		Use:   "wait <job-id>",
		Short: "Wait for an ingestion job to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			eff := rt.effective()
			if err := eff.Validate(config.OpIngest); err != nil {
				return err
			}
			return rt.waitJob(cmd, args[0], eff, opts)
		},
	}

	ingestCmd.AddCommand(startCmd, statusCmd, waitCmd)
	return ingestCmd
}

func (rt *runtime) waitJob(cmd *cobra.Command, jobID string, eff config.Effective, opts ingestOptions) error {
	ctx := cmd.Context()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	var last string
	progress := func(job agent.IngestionJob) {
		if rt.cfg.Quiet || opts.asJSON || job.Status == last {
			return
		}
		last = job.Status
		_, _ = fmt.Fprintf(rt.stderr, "%s %s\n", present.StderrStyles().Timeago.Render(time.Now().Format(time.TimeOnly)), job.Status)
	}

	job, err := rt.service().WaitIngestion(ctx, jobID, eff, opts.pollInterval, progress)
	if err != nil {
		if job.ID != "" {
			_ = printJob(cmd.OutOrStdout(), job, opts.asJSON)
		}
		return remoteError(err, "Ingestion job did not complete.")
	}
	return printJob(cmd.OutOrStdout(), job, opts.asJSON)
}

func printJob(w io.Writer, job agent.IngestionJob, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(job) //nolint:wrapcheck
	}

	s := present.StdoutStyles()
	status := s.Status
	if job.Status == "FAILED" || job.Status == "STOPPED" {
		status = s.StatusBad
	}
	_, _ = fmt.Fprintf(w, "%s %s\n", s.AppName.Render(job.ID), status.Render(job.Status))
	if !job.StartedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "  started %s\n", s.Timeago.Render(timeago.Of(job.StartedAt)))
	}
	if !job.UpdatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "  updated %s\n", s.Timeago.Render(timeago.Of(job.UpdatedAt)))
	}
	st := job.Statistics
	//nolint:mnd
	_, _ = fmt.Fprintf(w, "  %-18s %d\n  %-18s %d\n  %-18s %d\n  %-18s %d\n  %-18s %d\n",
		"scanned", st.Scanned,
		"new indexed", st.NewIndexed,
		"modified indexed", st.ModifiedIndexed,
		"deleted", st.Deleted,
		"failed", st.Failed,
	)
	for _, reason := range job.FailureReasons {
		_, _ = fmt.Fprintf(w, "  %s %s\n", s.StatusBad.Render("reason:"), reason)
	}
	return nil
}
