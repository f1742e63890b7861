package harness

import (
	"fmt"

	"github.com/tmcln/pointerhub/internal/aggregator"
	"github.com/tmcln/pointerhub/internal/pointer"
)

// scenarioLayer is a named layer with no receive capabilities: the trace
// is observed through a subscriber, and ownership is asserted via the
// recorded owner field.
type scenarioLayer struct {
	name string
}

func (l *scenarioLayer) Name() string { return l.name }

// traceSubscriber records every dispatched batch as trace events.
type traceSubscriber struct {
	cycle   int64
	trace   []TraceEvent
	aliasOf map[pointer.ID]string
}

func (s *traceSubscriber) capture(category string, batch []*pointer.Pointer) {
	for _, p := range batch {
		owner := ""
		if p.Press.Valid() {
			owner = p.Press.Layer.Name()
		}
		s.trace = append(s.trace, TraceEvent{
			Cycle:    s.cycle,
			Category: category,
			Pointer:  int64(p.ID),
			Alias:    s.aliasOf[p.ID],
			Kind:     p.Kind.String(),
			X:        p.Pos.X,
			Y:        p.Pos.Y,
			PrevX:    p.PrevPos.X,
			PrevY:    p.PrevPos.Y,
			Buttons:  int64(p.Buttons),
			Owner:    owner,
		})
	}
}

func (s *traceSubscriber) OnCycleStarted()  { s.cycle++ }
func (s *traceSubscriber) OnCycleFinished() {}

func (s *traceSubscriber) OnAdded(ps []*pointer.Pointer)     { s.capture("added", ps) }
func (s *traceSubscriber) OnUpdated(ps []*pointer.Pointer)   { s.capture("updated", ps) }
func (s *traceSubscriber) OnPressed(ps []*pointer.Pointer)   { s.capture("pressed", ps) }
func (s *traceSubscriber) OnReleased(ps []*pointer.Pointer)  { s.capture("released", ps) }
func (s *traceSubscriber) OnRemoved(ps []*pointer.Pointer)   { s.capture("removed", ps) }
func (s *traceSubscriber) OnCancelled(ps []*pointer.Pointer) { s.capture("cancelled", ps) }

// Run executes a scenario and returns the recorded trace and final
// state. Assertion checking is separate (CheckAssertions), so callers
// can inspect a failing run.
func Run(scenario *Scenario) (*Result, error) {
	session := scenario.Session
	if session == "" {
		session = DefaultSession
	}

	byName := make(map[string]pointer.Layer, len(scenario.Layers))
	layers := make([]pointer.Layer, len(scenario.Layers))
	for i, name := range scenario.Layers {
		l := &scenarioLayer{name: name}
		byName[name] = l
		layers[i] = l
	}

	sub := &traceSubscriber{aliasOf: make(map[pointer.ID]string)}
	sink := aggregator.NewCountingSink()

	hitTest := aggregator.HitTesterFunc(func(p *pointer.Pointer) (aggregator.Hit, bool) {
		layerName, ok := scenario.HitTest[sub.aliasOf[p.ID]]
		if !ok {
			return aggregator.Hit{}, false
		}
		return aggregator.Hit{Layer: byName[layerName]}, true
	})

	opts := []aggregator.Option{
		aggregator.WithSessionGenerator(aggregator.FixedSessionGenerator{Token: session}),
		aggregator.WithDiagnostics(sink),
		aggregator.WithHitTester(hitTest),
	}
	if scenario.WarmPointers > 0 {
		opts = append(opts, aggregator.WithWarmPointers(scenario.WarmPointers))
	}

	agg := aggregator.New(opts...)
	agg.SetLayers(layers...)
	if err := agg.Subscribe("harness-trace", sub); err != nil {
		return nil, fmt.Errorf("run scenario %q: %w", scenario.Name, err)
	}

	idFor := make(map[string]pointer.ID)
	for c, cycle := range scenario.Cycles {
		for i, step := range cycle.Steps {
			if err := stageStep(agg, &step, idFor, sub.aliasOf); err != nil {
				return nil, fmt.Errorf("run scenario %q: cycles[%d].steps[%d]: %w", scenario.Name, c, i, err)
			}
		}
		agg.Tick()
	}

	aliases := make(map[string]int64, len(idFor))
	for alias, id := range idFor {
		aliases[alias] = int64(id)
	}

	return &Result{
		Trace:        sub.trace,
		Diagnostics:  sink.All(),
		Aliases:      aliases,
		LiveCount:    agg.LiveCount(),
		PressedCount: agg.PressedCount(),
		Cycles:       agg.CycleSeq(),
		Session:      session,
		PoolStats:    agg.PoolStats(),
	}, nil
}

// stageStep issues one producer call.
func stageStep(agg *aggregator.Aggregator, step *Step, idFor map[string]pointer.ID, aliasOf map[pointer.ID]string) error {
	switch {
	case step.Add != nil:
		kind, err := pointer.ParseDeviceKind(step.Add.Kind)
		if err != nil {
			return err
		}
		buttons, err := parseButtons(step.Add.Buttons)
		if err != nil {
			return err
		}
		id := agg.Add(pointer.Template{
			Kind:    kind,
			Pos:     pointer.Point{X: step.Add.X, Y: step.Add.Y},
			Buttons: buttons,
		})
		idFor[step.Add.ID] = id
		aliasOf[id] = step.Add.ID

	case step.Update != nil:
		buttons, err := parseButtons(step.Update.Buttons)
		if err != nil {
			return err
		}
		agg.Update(idFor[step.Update.ID], pointer.Point{X: step.Update.X, Y: step.Update.Y}, buttons)

	case step.Press != nil:
		agg.Press(resolveRef(step.Press, idFor))
	case step.Release != nil:
		agg.Release(resolveRef(step.Release, idFor))
	case step.Remove != nil:
		agg.Remove(resolveRef(step.Remove, idFor))
	case step.Cancel != nil:
		agg.Cancel(resolveRef(step.Cancel, idFor))

	default:
		return fmt.Errorf("empty step")
	}
	return nil
}

// resolveRef maps a step reference to an identity. Raw references pass
// through untranslated so scenarios can exercise stale identities.
func resolveRef(ref *RefStep, idFor map[string]pointer.ID) pointer.ID {
	if ref.ID != "" {
		return idFor[ref.ID]
	}
	return pointer.ID(ref.Raw)
}
