package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tessen-io/stagehand/internal/engine"
	"github.com/tessen-io/stagehand/internal/recorder"
	"github.com/tessen-io/stagehand/internal/scenario"
	"github.com/tessen-io/stagehand/internal/transport"
)

// RunResult holds the run outcome for JSON output.
type RunResult struct {
	Scenario string          `json:"scenario"`
	Verdict  *engine.Verdict `json:"verdict"`
	RunID    string          `json:"run_id,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		searchPath    []string
		recordPath    string
		deterministic bool
	)

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Execute a scenario to quiescence and report the verdict",
		Long: `Execute a scenario to quiescence and report the verdict.

The scenario runs against the in-process loopback transport. Messages sent
to cast members without a scripted handler are accepted and dropped; recvs
quiesce unsatisfied unless matching traffic arrives.

Exit codes: 0 scenario passed, 1 scenario failed or the run aborted,
2 the scenario could not be loaded.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(rootOpts, cmd, args[0], searchPath, recordPath, deterministic)
		},
	}

	cmd.Flags().StringArrayVar(&searchPath, "search-path", nil, "additional directories searched for subroutine files (repeatable)")
	cmd.Flags().StringVar(&recordPath, "record", "", "record the run to this SQLite database")
	cmd.Flags().BoolVar(&deterministic, "deterministic", false, "use sequential correlation ids instead of UUIDv7")

	return cmd
}

func runRun(opts *RootOptions, cmd *cobra.Command, path string, searchPath []string, recordPath string, deterministic bool) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	unit, graph, participants, err := loadScenario(path, searchPath)
	if err != nil {
		_ = formatter.Error("E_LOAD", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	formatter.VerboseLog("loaded scenario %q: %d event(s), %d participant(s)",
		unit.Doc.Name, graph.Len(), len(participants))

	schedOpts := []engine.Option{}
	if deterministic {
		schedOpts = append(schedOpts, engine.WithCorrelation(engine.NewSequenceGenerator()))
	}

	var run *recorder.Run
	if recordPath != "" {
		rec, err := recorder.Open(recordPath)
		if err != nil {
			_ = formatter.Error("E_RECORD", err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open recorder", err)
		}
		defer rec.Close()

		run, err = rec.StartRun(cmd.Context(), unit.Doc.Name)
		if err != nil {
			_ = formatter.Error("E_RECORD", err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to start recording", err)
		}
		schedOpts = append(schedOpts, engine.WithTraceSink(run))
	}

	sched := engine.NewScheduler(graph, transport.NewLoopback(), participants, schedOpts...)
	verdict, runErr := sched.Run(cmd.Context())

	if run != nil {
		if err := run.Finish(cmd.Context(), verdict); err != nil {
			formatter.VerboseLog("recording incomplete: %v", err)
		}
	}

	result := RunResult{Scenario: unit.Doc.Name, Verdict: verdict}
	if run != nil {
		result.RunID = run.ID()
	}

	if err := outputVerdict(formatter, result); err != nil {
		return err
	}

	switch verdict.Status {
	case engine.StatusPass:
		return nil
	case engine.StatusError:
		return WrapExitError(ExitFailure, "run aborted", runErr)
	default:
		return NewExitError(ExitFailure, fmt.Sprintf("scenario failed with %d unmet requirement(s)", len(verdict.Unmet)))
	}
}

// loadScenario loads a scenario file with its subroutines and compiles it.
func loadScenario(path string, searchPath []string) (*scenario.Unit, *engine.Graph, []string, error) {
	unit, err := scenario.NewLoader(searchPath...).Load(path)
	if err != nil {
		return nil, nil, nil, err
	}
	graph, participants, err := scenario.Build(unit)
	if err != nil {
		return nil, nil, nil, err
	}
	return unit, graph, participants, nil
}

func outputVerdict(f *OutputFormatter, result RunResult) error {
	if f.Format == "json" {
		return f.Success(result)
	}

	v := result.Verdict
	switch v.Status {
	case engine.StatusPass:
		fmt.Fprintf(f.Writer, "✓ %s passed (%d fired, %d steps)\n", result.Scenario, v.Fired, v.Steps)
	case engine.StatusError:
		fmt.Fprintf(f.Writer, "✗ %s aborted: %s\n", result.Scenario, v.Failure)
	default:
		fmt.Fprintf(f.Writer, "✗ %s failed (%d fired, %d steps)\n", result.Scenario, v.Fired, v.Steps)
		for _, u := range v.Unmet {
			name := u.Node
			if u.Scope != "" {
				name = u.Scope + "/" + u.Node
			}
			fmt.Fprintf(f.Writer, "  require %s: %s is %s", u.Require, name, u.State)
			if u.Reason != "" {
				fmt.Fprintf(f.Writer, " (%s)", u.Reason)
			}
			fmt.Fprintln(f.Writer)
		}
	}
	if result.RunID != "" {
		fmt.Fprintf(f.Writer, "recorded as run %s\n", result.RunID)
	}
	return nil
}
