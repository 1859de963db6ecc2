package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tessen-io/stagehand/internal/recorder"
)

// TraceResult holds a recorded run for JSON output.
type TraceResult struct {
	Run     *recorder.RunSummary `json:"run,omitempty"`
	Firings []recorder.Firing    `json:"firings,omitempty"`
	Runs    []recorder.RunSummary `json:"runs,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace <database> [run-id]",
		Short: "Inspect recorded runs",
		Long: `Inspect runs recorded with "stagehand run --record".

Without a run id, lists recorded runs most recent first. With a run id,
prints the run's firing trace in execution order.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 2 {
				runID = args[1]
			}
			return runTrace(rootOpts, cmd, args[0], runID)
		},
	}

	return cmd
}

func runTrace(opts *RootOptions, cmd *cobra.Command, dbPath, runID string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	rec, err := recorder.Open(dbPath)
	if err != nil {
		_ = formatter.Error("E_RECORD", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer rec.Close()

	if runID == "" {
		runs, err := rec.ListRuns(cmd.Context())
		if err != nil {
			_ = formatter.Error("E_RECORD", err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		return outputRunList(formatter, runs)
	}

	summary, firings, err := rec.ReadRun(cmd.Context(), runID)
	if err != nil {
		_ = formatter.Error("E_RECORD", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	return outputTrace(formatter, summary, firings)
}

func outputRunList(f *OutputFormatter, runs []recorder.RunSummary) error {
	if f.Format == "json" {
		return f.Success(TraceResult{Runs: runs})
	}

	if len(runs) == 0 {
		fmt.Fprintln(f.Writer, "no recorded runs")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(f.Writer, "%s  %-8s %s (%d fired, %d steps)\n",
			r.ID, r.Status, r.Scenario, r.Fired, r.Steps)
	}
	return nil
}

func outputTrace(f *OutputFormatter, run *recorder.RunSummary, firings []recorder.Firing) error {
	if f.Format == "json" {
		return f.Success(TraceResult{Run: run, Firings: firings})
	}

	fmt.Fprintf(f.Writer, "run %s: %s %s (%d fired, %d steps)\n",
		run.ID, run.Scenario, run.Status, run.Fired, run.Steps)
	if run.Failure != "" {
		fmt.Fprintf(f.Writer, "failure: %s\n", run.Failure)
	}
	for _, fr := range firings {
		node := fr.Node
		if fr.Scope != "" {
			node = fr.Scope + "/" + fr.Node
		}
		fmt.Fprintf(f.Writer, "%4d  step=%-3d %-8s %s", fr.Seq, fr.Step, fr.Kind, node)
		if fr.Detail != "" {
			fmt.Fprintf(f.Writer, "  %s", fr.Detail)
		}
		fmt.Fprintln(f.Writer)
	}
	return nil
}
