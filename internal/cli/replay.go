package cli

import (
	"context"
	"fmt"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/tmcln/pointerhub/internal/aggregator"
	"github.com/tmcln/pointerhub/internal/eventlog"
	"github.com/tmcln/pointerhub/internal/pointer"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string
}

// ReplayResult holds the replay command output.
type ReplayResult struct {
	Session       string `json:"session"`
	Cycles        int    `json:"cycles"`
	Events        int    `json:"events"`
	Deterministic bool   `json:"deterministic"`
	Mismatch      string `json:"mismatch,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a recorded session and verify determinism",
		Long: `Replay a recorded session through a fresh aggregator and verify
the dispatched trace matches the recording cycle for cycle.

Press ownership is reproduced from the recorded owner fields, so a
deterministic dispatcher must emit an identical event stream. A mismatch
indicates corruption or a behavior change and exits non-zero.

Examples:
  pointerhub replay --db ./pointers.db --session 0192f3a1-...
  pointerhub replay --db ./pointers.db --session 0192f3a1-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite event log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session token to replay (required)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

// replayLayer is a named stand-in for a layer seen in the recording.
type replayLayer struct {
	name string
}

func (l *replayLayer) Name() string { return l.name }

// replayCapture buffers dispatched cycles for comparison against the
// recording. Mirrors the event-log recorder's skip-empty-cycles rule.
type replayCapture struct {
	buffer []eventlog.EventRecord
	cycles [][]eventlog.EventRecord
}

func (c *replayCapture) capture(cat aggregator.Category, batch []*pointer.Pointer) {
	for _, p := range batch {
		owner := ""
		if p.Press.Valid() {
			owner = p.Press.Layer.Name()
		}
		c.buffer = append(c.buffer, eventlog.EventRecord{
			Category:  cat,
			PointerID: p.ID,
			Kind:      p.Kind,
			Pos:       p.Pos,
			PrevPos:   p.PrevPos,
			Buttons:   p.Buttons,
			Flags:     p.Flags,
			Owner:     owner,
		})
	}
}

func (c *replayCapture) OnCycleStarted() { c.buffer = nil }
func (c *replayCapture) OnCycleFinished() {
	if len(c.buffer) > 0 {
		c.cycles = append(c.cycles, c.buffer)
		c.buffer = nil
	}
}

func (c *replayCapture) OnAdded(ps []*pointer.Pointer) { c.capture(aggregator.CategoryAdded, ps) }
func (c *replayCapture) OnUpdated(ps []*pointer.Pointer) {
	c.capture(aggregator.CategoryUpdated, ps)
}
func (c *replayCapture) OnPressed(ps []*pointer.Pointer) {
	c.capture(aggregator.CategoryPressed, ps)
}
func (c *replayCapture) OnReleased(ps []*pointer.Pointer) {
	c.capture(aggregator.CategoryReleased, ps)
}
func (c *replayCapture) OnRemoved(ps []*pointer.Pointer) {
	c.capture(aggregator.CategoryRemoved, ps)
}
func (c *replayCapture) OnCancelled(ps []*pointer.Pointer) {
	c.capture(aggregator.CategoryCancelled, ps)
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	store, err := eventlog.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer store.Close()

	recorded, err := store.ReadCycles(ctx, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}
	if len(recorded) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("session %q not found", opts.Session))
	}

	agg, capture, renumber := replayAggregator(opts.Session, recorded)

	if _, err := eventlog.Replay(ctx, store, opts.Session, agg); err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	result := compareReplay(opts.Session, recorded, capture.cycles, renumber)

	if opts.Format == "json" {
		if err := outputJSON(cmd, result); err != nil {
			return err
		}
	} else {
		outputReplayText(cmd, result)
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, "replay diverged from recording")
	}
	return nil
}

// replayAggregator builds an aggregator whose hit tester reproduces the
// recorded ownership decisions: each press consumes the next recorded
// owner for that identity, in recording order.
//
// A fresh aggregator reissues identities from 1 in recorded add order,
// so recorded identities are renumbered the same way. The renumber map
// keys the owner queues and later the trace comparison.
func replayAggregator(session string, recorded []eventlog.CycleRecord) (*aggregator.Aggregator, *replayCapture, map[pointer.ID]pointer.ID) {
	renumber := make(map[pointer.ID]pointer.ID)
	owners := make(map[pointer.ID][]string)
	byName := make(map[string]pointer.Layer)
	var layers []pointer.Layer

	var next pointer.ID
	for _, cycle := range recorded {
		for _, ev := range cycle.Events {
			if ev.Category == aggregator.CategoryAdded {
				next++
				renumber[ev.PointerID] = next
			}
			if ev.Owner != "" && byName[ev.Owner] == nil {
				l := &replayLayer{name: ev.Owner}
				byName[ev.Owner] = l
				layers = append(layers, l)
			}
			if ev.Category == aggregator.CategoryPressed {
				fresh := renumber[ev.PointerID]
				owners[fresh] = append(owners[fresh], ev.Owner)
			}
		}
	}

	hitTest := aggregator.HitTesterFunc(func(p *pointer.Pointer) (aggregator.Hit, bool) {
		queue := owners[p.ID]
		if len(queue) == 0 {
			return aggregator.Hit{}, false
		}
		owner := queue[0]
		owners[p.ID] = queue[1:]
		if owner == "" {
			return aggregator.Hit{}, false
		}
		return aggregator.Hit{Layer: byName[owner]}, true
	})

	capture := &replayCapture{}
	agg := aggregator.New(
		aggregator.WithSessionGenerator(aggregator.FixedSessionGenerator{Token: session}),
		aggregator.WithHitTester(hitTest),
		aggregator.WithDiagnostics(aggregator.NewCountingSink()),
	)
	agg.SetLayers(layers...)
	// The capture subscriber implements every observer interface.
	_ = agg.Subscribe("replay-capture", capture)
	return agg, capture, renumber
}

// compareReplay checks the replayed cycles against the recording.
// Recorded identities are renumbered to match the fresh aggregator's
// allocation, and cycle sequence numbers are ignored: the recording may
// have sparse sequences where empty cycles were skipped, while replay
// renumbers.
func compareReplay(session string, recorded []eventlog.CycleRecord, replayed [][]eventlog.EventRecord, renumber map[pointer.ID]pointer.ID) ReplayResult {
	result := ReplayResult{
		Session:       session,
		Cycles:        len(recorded),
		Deterministic: true,
	}
	for _, cycle := range recorded {
		result.Events += len(cycle.Events)
	}

	if len(replayed) != len(recorded) {
		result.Deterministic = false
		result.Mismatch = fmt.Sprintf("recorded %d non-empty cycles, replay produced %d", len(recorded), len(replayed))
		return result
	}

	for i, cycle := range recorded {
		expected := make([]eventlog.EventRecord, len(cycle.Events))
		for j, ev := range cycle.Events {
			ev.PointerID = renumber[ev.PointerID]
			expected[j] = ev
		}
		if !reflect.DeepEqual(expected, replayed[i]) {
			result.Deterministic = false
			result.Mismatch = fmt.Sprintf("cycle %d events diverged", cycle.Seq)
			return result
		}
	}
	return result
}

func outputReplayText(cmd *cobra.Command, result ReplayResult) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Session: %s\n", result.Session)
	fmt.Fprintf(w, "Cycles: %d, Events: %d\n", result.Cycles, result.Events)
	if result.Deterministic {
		fmt.Fprintln(w, "Replay: deterministic")
	} else {
		fmt.Fprintf(w, "Replay: DIVERGED (%s)\n", result.Mismatch)
	}
}
