package eventlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmcln/pointerhub/internal/aggregator"
	"github.com/tmcln/pointerhub/internal/pointer"
	"github.com/tmcln/pointerhub/internal/testutil"
)

// recordedAggregator wires an aggregator that records into the store
// under the given session, with a single claiming layer named "canvas".
func recordedAggregator(t *testing.T, store *Store, session string) (*aggregator.Aggregator, *Recorder) {
	t.Helper()

	layer := testutil.NewRecordingLayer("canvas")
	agg := aggregator.New(
		aggregator.WithSessionGenerator(aggregator.FixedSessionGenerator{Token: session}),
		aggregator.WithHitTester(aggregator.HitTesterFunc(func(*pointer.Pointer) (aggregator.Hit, bool) {
			return aggregator.Hit{Layer: layer}, true
		})),
	)
	agg.SetLayers(layer)

	rec := NewRecorder(store, session, quietLogger())
	require.NoError(t, agg.Subscribe("eventlog", rec))
	return agg, rec
}

func TestReplayReproducesRecordedSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Record a short two-finger session.
	live, liveRec := recordedAggregator(t, store, "live")
	f1 := live.Add(pointer.Template{Kind: pointer.Touch, Pos: pointer.Point{X: 1, Y: 1}})
	f2 := live.Add(pointer.Template{Kind: pointer.Touch, Pos: pointer.Point{X: 2, Y: 2}})
	live.Tick()
	live.Press(f1)
	live.Update(f2, pointer.Point{X: 5, Y: 5}, 0)
	live.Tick()
	live.Release(f1)
	live.Remove(f2)
	live.Tick()
	live.Remove(f1)
	live.Tick()
	require.NoError(t, liveRec.LastError())

	// Replay it through a fresh aggregator recording its own session.
	fresh, freshRec := recordedAggregator(t, store, "replayed")
	cycles, err := Replay(ctx, store, "live", fresh)
	require.NoError(t, err)
	assert.Equal(t, 4, cycles)
	require.NoError(t, freshRec.LastError())

	original, err := store.ReadCycles(ctx, "live")
	require.NoError(t, err)
	replayed, err := store.ReadCycles(ctx, "replayed")
	require.NoError(t, err)

	// A fresh aggregator issues identities from 1 again, so the replayed
	// session matches the original record for record.
	assert.Equal(t, original, replayed)
	assert.Equal(t, 0, fresh.LiveCount())
}

func TestReplayUnknownSession(t *testing.T) {
	store := openTestStore(t)

	_, err := Replay(context.Background(), store, "missing", aggregator.New())
	assert.ErrorContains(t, err, "no recorded cycles")
}

func TestReplayHonorsContextCancellation(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.WriteCycle(context.Background(), "s", 1, sampleEvents()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done, err := Replay(ctx, store, "s", aggregator.New())
	assert.Equal(t, 0, done)
	assert.ErrorIs(t, err, context.Canceled)
}
