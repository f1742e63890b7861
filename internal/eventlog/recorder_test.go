package eventlog

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmcln/pointerhub/internal/aggregator"
	"github.com/tmcln/pointerhub/internal/pointer"
	"github.com/tmcln/pointerhub/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorderPersistsDispatchedCycles(t *testing.T) {
	store := openTestStore(t)

	layer := testutil.NewRecordingLayer("canvas")
	agg := aggregator.New(
		aggregator.WithSessionGenerator(aggregator.FixedSessionGenerator{Token: "rec-test"}),
		aggregator.WithHitTester(aggregator.HitTesterFunc(func(*pointer.Pointer) (aggregator.Hit, bool) {
			return aggregator.Hit{Layer: layer}, true
		})),
	)
	agg.SetLayers(layer)

	rec := NewRecorder(store, agg.Session(), quietLogger())
	require.NoError(t, agg.Subscribe("eventlog", rec))

	id := agg.Add(pointer.Template{Kind: pointer.Pen, Pos: pointer.Point{X: 1, Y: 2}})
	agg.Tick()
	agg.Press(id)
	agg.Update(id, pointer.Point{X: 3, Y: 4}, pointer.ButtonPrimary)
	agg.Tick()
	agg.Release(id)
	agg.Tick()
	agg.Remove(id)
	agg.Tick()

	require.NoError(t, rec.LastError())

	cycles, err := store.ReadCycles(context.Background(), "rec-test")
	require.NoError(t, err)
	require.Len(t, cycles, 4)

	require.Len(t, cycles[0].Events, 1)
	assert.Equal(t, aggregator.CategoryAdded, cycles[0].Events[0].Category)
	assert.Equal(t, pointer.Pen, cycles[0].Events[0].Kind)

	// Updated dispatches before pressed within the cycle.
	require.Len(t, cycles[1].Events, 2)
	assert.Equal(t, aggregator.CategoryUpdated, cycles[1].Events[0].Category)
	assert.Equal(t, float32(3), cycles[1].Events[0].Pos.X)
	assert.Equal(t, float32(1), cycles[1].Events[0].PrevPos.X)
	assert.Equal(t, aggregator.CategoryPressed, cycles[1].Events[1].Category)
	assert.Equal(t, "canvas", cycles[1].Events[1].Owner)

	require.Len(t, cycles[2].Events, 1)
	assert.Equal(t, aggregator.CategoryReleased, cycles[2].Events[0].Category)
	assert.Equal(t, "canvas", cycles[2].Events[0].Owner)

	require.Len(t, cycles[3].Events, 1)
	assert.Equal(t, aggregator.CategoryRemoved, cycles[3].Events[0].Category)
}

func TestRecorderSkipsEmptyCycles(t *testing.T) {
	store := openTestStore(t)
	agg := aggregator.New(
		aggregator.WithSessionGenerator(aggregator.FixedSessionGenerator{Token: "empty-test"}),
	)
	rec := NewRecorder(store, agg.Session(), quietLogger())
	require.NoError(t, agg.Subscribe("eventlog", rec))

	agg.Tick()
	agg.Tick()
	agg.Add(pointer.Template{Kind: pointer.Touch})
	agg.Tick()

	cycles, err := store.ReadCycles(context.Background(), "empty-test")
	require.NoError(t, err)
	require.Len(t, cycles, 1)

	// Sequence numbers still count the empty cycles.
	assert.Equal(t, int64(3), cycles[0].Seq)
}

func TestRecorderStorageFailureDoesNotDisturbDispatch(t *testing.T) {
	store := openTestStore(t)
	agg := aggregator.New(
		aggregator.WithSessionGenerator(aggregator.FixedSessionGenerator{Token: "fail-test"}),
	)
	rec := NewRecorder(store, agg.Session(), quietLogger())
	require.NoError(t, agg.Subscribe("eventlog", rec))

	require.NoError(t, store.Close())

	agg.Add(pointer.Template{Kind: pointer.Touch})
	require.NotPanics(t, agg.Tick)

	assert.Error(t, rec.LastError())
	assert.Equal(t, 1, agg.LiveCount())
}
