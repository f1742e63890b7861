package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tmcln/pointerhub/internal/aggregator"
	"github.com/tmcln/pointerhub/internal/eventlog"
	"github.com/tmcln/pointerhub/internal/harness"
	"github.com/tmcln/pointerhub/internal/pointer"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Scenario string
	Database string
}

// SimulateResult holds the simulate command output.
type SimulateResult struct {
	Scenario     string         `json:"scenario"`
	Session      string         `json:"session"`
	Cycles       int64          `json:"cycles"`
	Events       int            `json:"events"`
	Diagnostics  map[string]int `json:"diagnostics,omitempty"`
	LiveCount    int            `json:"live_count"`
	PressedCount int            `json:"pressed_count"`
	Assertions   int            `json:"assertions"`
	Recorded     bool           `json:"recorded"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scenario file against a fresh aggregator",
		Long: `Run a declarative scenario file and check its assertions.

The scenario stages producer calls cycle by cycle, ticks the dispatcher,
and validates the resulting trace, diagnostics, and final counts.
With --db, the dispatched trace is also recorded to the event log under
the scenario's session token.

Examples:
  pointerhub simulate --scenario ./two-finger.yaml
  pointerhub simulate --scenario ./two-finger.yaml --db ./pointers.db
  pointerhub simulate --scenario ./two-finger.yaml --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "path to scenario YAML (required)")
	_ = cmd.MarkFlagRequired("scenario")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the trace to this SQLite event log")

	return cmd
}

func runSimulate(opts *SimulateOptions, cmd *cobra.Command) error {
	scenario, err := harness.LoadScenario(opts.Scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	if err := harness.CheckAssertions(result, scenario); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %q failed", scenario.Name))
	}

	recorded := false
	if opts.Database != "" {
		if err := recordTrace(opts.Database, result); err != nil {
			return WrapExitError(ExitCommandError, "failed to record trace", err)
		}
		recorded = true
	}

	diags := make(map[string]int)
	for _, d := range result.Diagnostics {
		diags[string(d.Code)]++
	}

	out := SimulateResult{
		Scenario:     scenario.Name,
		Session:      result.Session,
		Cycles:       result.Cycles,
		Events:       len(result.Trace),
		Diagnostics:  diags,
		LiveCount:    result.LiveCount,
		PressedCount: result.PressedCount,
		Assertions:   len(scenario.Assertions),
		Recorded:     recorded,
	}

	if opts.Format == "json" {
		return outputJSON(cmd, out)
	}
	return outputSimulateText(cmd, out, result, opts.Verbose)
}

// recordTrace persists a harness trace to the event log, one transaction
// per non-empty cycle.
func recordTrace(path string, result *harness.Result) error {
	store, err := eventlog.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	byCycle := make(map[int64][]eventlog.EventRecord)
	for _, event := range result.Trace {
		rec, err := toEventRecord(event)
		if err != nil {
			return err
		}
		byCycle[event.Cycle] = append(byCycle[event.Cycle], rec)
	}

	for seq := int64(1); seq <= result.Cycles; seq++ {
		events := byCycle[seq]
		if len(events) == 0 {
			continue
		}
		if err := store.WriteCycle(ctx, result.Session, seq, events); err != nil {
			return err
		}
	}
	return nil
}

func toEventRecord(event harness.TraceEvent) (eventlog.EventRecord, error) {
	category, err := aggregator.ParseCategory(event.Category)
	if err != nil {
		return eventlog.EventRecord{}, err
	}
	kind, err := pointer.ParseDeviceKind(event.Kind)
	if err != nil {
		return eventlog.EventRecord{}, err
	}
	return eventlog.EventRecord{
		Category:  category,
		PointerID: pointer.ID(event.Pointer),
		Kind:      kind,
		Pos:       pointer.Point{X: event.X, Y: event.Y},
		PrevPos:   pointer.Point{X: event.PrevX, Y: event.PrevY},
		Buttons:   pointer.Buttons(event.Buttons),
		Owner:     event.Owner,
	}, nil
}

func outputSimulateText(cmd *cobra.Command, out SimulateResult, result *harness.Result, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Scenario: %s\n", out.Scenario)
	fmt.Fprintf(w, "Session: %s\n", out.Session)
	fmt.Fprintf(w, "Cycles: %d, Events: %d\n", out.Cycles, out.Events)
	fmt.Fprintf(w, "Final state: %d live, %d pressed\n", out.LiveCount, out.PressedCount)
	fmt.Fprintf(w, "Assertions passed: %d\n", out.Assertions)
	if out.Recorded {
		fmt.Fprintln(w, "Trace recorded to event log")
	}

	if len(result.Diagnostics) > 0 {
		fmt.Fprintf(w, "Diagnostics: %d\n", len(result.Diagnostics))
		if verbose {
			for _, d := range result.Diagnostics {
				fmt.Fprintf(w, "  [%s] cycle %d pointer %d: %s\n", d.Code, d.Cycle, d.Pointer, d.Message)
			}
		}
	}

	if verbose {
		fmt.Fprintln(w, "Trace:")
		for _, event := range result.Trace {
			name := event.Alias
			if name == "" {
				name = fmt.Sprintf("#%d", event.Pointer)
			}
			fmt.Fprintf(w, "  [%d] %s %s (%g,%g)", event.Cycle, event.Category, name, event.X, event.Y)
			if event.Owner != "" {
				fmt.Fprintf(w, " owner=%s", event.Owner)
			}
			fmt.Fprintln(w)
		}
	}

	return nil
}
