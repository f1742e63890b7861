package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tmcln/pointerhub/internal/eventlog"
	"github.com/tmcln/pointerhub/internal/pointer"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
}

// TraceEventOut is one event in the trace command's JSON output.
type TraceEventOut struct {
	Cycle    int64   `json:"cycle"`
	Category string  `json:"category"`
	Pointer  int64   `json:"pointer"`
	Kind     string  `json:"kind"`
	X        float32 `json:"x"`
	Y        float32 `json:"y"`
	PrevX    float32 `json:"prev_x"`
	PrevY    float32 `json:"prev_y"`
	Buttons  uint32  `json:"buttons"`
	Owner    string  `json:"owner,omitempty"`
}

// TraceResult holds the trace command output.
type TraceResult struct {
	Session    string          `json:"session"`
	Cycles     int             `json:"cycles"`
	Events     int             `json:"events"`
	Pointers   int             `json:"pointers"`
	Categories map[string]int  `json:"categories"`
	Trace      []TraceEventOut `json:"trace"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the recorded event timeline for a session",
		Long: `Print every recorded dispatch event for a session in cycle order,
followed by per-category totals.

Examples:
  pointerhub trace --db ./pointers.db --session 0192f3a1-...
  pointerhub trace --db ./pointers.db --session 0192f3a1-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite event log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session token to inspect (required)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	store, err := eventlog.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer store.Close()

	cycles, err := store.ReadCycles(ctx, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}
	if len(cycles) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("session %q not found", opts.Session))
	}

	result := buildTraceResult(opts.Session, cycles)

	if opts.Format == "json" {
		return outputJSON(cmd, result)
	}
	outputTraceText(cmd, result)
	return nil
}

func buildTraceResult(session string, cycles []eventlog.CycleRecord) TraceResult {
	result := TraceResult{
		Session:    session,
		Cycles:     len(cycles),
		Categories: make(map[string]int),
	}
	pointers := make(map[pointer.ID]struct{})

	for _, cycle := range cycles {
		for _, ev := range cycle.Events {
			result.Trace = append(result.Trace, TraceEventOut{
				Cycle:    cycle.Seq,
				Category: ev.Category.String(),
				Pointer:  int64(ev.PointerID),
				Kind:     ev.Kind.String(),
				X:        ev.Pos.X,
				Y:        ev.Pos.Y,
				PrevX:    ev.PrevPos.X,
				PrevY:    ev.PrevPos.Y,
				Buttons:  uint32(ev.Buttons),
				Owner:    ev.Owner,
			})
			result.Categories[ev.Category.String()]++
			pointers[ev.PointerID] = struct{}{}
		}
	}

	result.Events = len(result.Trace)
	result.Pointers = len(pointers)
	return result
}

func outputTraceText(cmd *cobra.Command, result TraceResult) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Session: %s\n", result.Session)
	for _, ev := range result.Trace {
		fmt.Fprintf(w, "[%d] %s #%d %s (%g,%g)", ev.Cycle, ev.Category, ev.Pointer, ev.Kind, ev.X, ev.Y)
		if ev.Owner != "" {
			fmt.Fprintf(w, " owner=%s", ev.Owner)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Cycles: %d, Events: %d, Pointers: %d\n", result.Cycles, result.Events, result.Pointers)
	categories := make([]string, 0, len(result.Categories))
	for cat := range result.Categories {
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	for _, cat := range categories {
		fmt.Fprintf(w, "  %s: %d\n", cat, result.Categories[cat])
	}
}
