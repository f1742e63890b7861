package eventlog

import (
	"context"
	"fmt"

	"github.com/tmcln/pointerhub/internal/aggregator"
	"github.com/tmcln/pointerhub/internal/pointer"
)

// Sessions returns every recorded session token, oldest first.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session FROM cycles
		GROUP BY session
		ORDER BY MIN(id)
	`)
	if err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("read sessions: scan: %w", err)
		}
		sessions = append(sessions, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	return sessions, nil
}

// ReadCycles returns a session's cycles in sequence order, each with its
// events in dispatch order. Cycles with no events are included.
func (s *Store) ReadCycles(ctx context.Context, session string) ([]CycleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq FROM cycles
		WHERE session = ?
		ORDER BY seq
	`, session)
	if err != nil {
		return nil, fmt.Errorf("read cycles: %w", err)
	}
	defer rows.Close()

	var cycles []CycleRecord
	var cycleIDs []int64
	for rows.Next() {
		var id, seq int64
		if err := rows.Scan(&id, &seq); err != nil {
			return nil, fmt.Errorf("read cycles: scan cycle: %w", err)
		}
		cycles = append(cycles, CycleRecord{Seq: seq})
		cycleIDs = append(cycleIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read cycles: %w", err)
	}

	for i, cycleID := range cycleIDs {
		events, err := s.readEvents(ctx, cycleID)
		if err != nil {
			return nil, fmt.Errorf("read cycles: seq %d: %w", cycles[i].Seq, err)
		}
		cycles[i].Events = events
	}
	return cycles, nil
}

// readEvents loads one cycle's events in dispatch order.
func (s *Store) readEvents(ctx context.Context, cycleID int64) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, pointer_id, kind, x, y, prev_x, prev_y, buttons, flags, owner
		FROM events
		WHERE cycle_id = ?
		ORDER BY ord
	`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var (
			category, kind, owner string
			pointerID             int64
			buttons, flags        int64
			x, y, prevX, prevY    float64
		)
		if err := rows.Scan(&category, &pointerID, &kind, &x, &y, &prevX, &prevY, &buttons, &flags, &owner); err != nil {
			return nil, fmt.Errorf("read events: scan: %w", err)
		}

		cat, err := aggregator.ParseCategory(category)
		if err != nil {
			return nil, fmt.Errorf("read events: %w", err)
		}
		deviceKind, err := pointer.ParseDeviceKind(kind)
		if err != nil {
			return nil, fmt.Errorf("read events: %w", err)
		}

		events = append(events, EventRecord{
			Category:  cat,
			PointerID: pointer.ID(pointerID),
			Kind:      deviceKind,
			Pos:       pointer.Point{X: float32(x), Y: float32(y)},
			PrevPos:   pointer.Point{X: float32(prevX), Y: float32(prevY)},
			Buttons:   pointer.Buttons(buttons),
			Flags:     pointer.Flags(flags),
			Owner:     owner,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}
