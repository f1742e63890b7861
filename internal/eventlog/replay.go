package eventlog

import (
	"context"
	"fmt"

	"github.com/tmcln/pointerhub/internal/aggregator"
	"github.com/tmcln/pointerhub/internal/pointer"
)

// Replay feeds a recorded session back through a fresh aggregator, one
// Tick per recorded cycle, and returns the number of cycles replayed.
//
// The aggregator allocates fresh identities; recorded identities map
// onto them as added events are re-fed. The caller wires layers, a hit
// tester, and subscribers onto the aggregator before replaying to
// reproduce ownership and observe the replayed traffic.
//
// Replay drives Tick itself: the aggregator must not be scheduled by
// anything else for the duration.
func Replay(ctx context.Context, store *Store, session string, agg *aggregator.Aggregator) (int, error) {
	cycles, err := store.ReadCycles(ctx, session)
	if err != nil {
		return 0, fmt.Errorf("replay: %w", err)
	}
	if len(cycles) == 0 {
		return 0, fmt.Errorf("replay: session %q has no recorded cycles", session)
	}

	idMap := make(map[pointer.ID]pointer.ID)
	for i, cycle := range cycles {
		if err := ctx.Err(); err != nil {
			return i, fmt.Errorf("replay: cycle %d: %w", cycle.Seq, err)
		}
		if err := replayCycle(agg, cycle, idMap); err != nil {
			return i, fmt.Errorf("replay: %w", err)
		}
		agg.Tick()
	}
	return len(cycles), nil
}

// replayCycle stages one recorded cycle's events through the producer
// API, translating recorded identities to live ones.
func replayCycle(agg *aggregator.Aggregator, cycle CycleRecord, idMap map[pointer.ID]pointer.ID) error {
	for _, ev := range cycle.Events {
		if ev.Category == aggregator.CategoryAdded {
			idMap[ev.PointerID] = agg.Add(pointer.Template{
				Kind:    ev.Kind,
				Pos:     ev.Pos,
				Buttons: ev.Buttons,
				Flags:   ev.Flags,
			})
			continue
		}

		id, ok := idMap[ev.PointerID]
		if !ok {
			return fmt.Errorf("cycle %d: unknown recorded pointer %d", cycle.Seq, ev.PointerID)
		}

		switch ev.Category {
		case aggregator.CategoryUpdated:
			agg.Update(id, ev.Pos, ev.Buttons)
		case aggregator.CategoryPressed:
			agg.Press(id)
		case aggregator.CategoryReleased:
			agg.Release(id)
		case aggregator.CategoryRemoved:
			agg.Remove(id)
			delete(idMap, ev.PointerID)
		case aggregator.CategoryCancelled:
			agg.Cancel(id)
			delete(idMap, ev.PointerID)
		default:
			return fmt.Errorf("cycle %d: unknown recorded category %q", cycle.Seq, ev.Category)
		}
	}
	return nil
}
