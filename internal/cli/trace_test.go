package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmcln/pointerhub/internal/eventlog"
	"github.com/tmcln/pointerhub/internal/harness"
)

func TestTraceMissingFlags(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", "some.db"}) // Missing --session

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTraceUnknownSession(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "events.db")
	store, err := eventlog.Open(dbPath)
	require.NoError(t, err)
	store.Close()

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--session", "no-such-session"})

	err = cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestTraceTimelineText(t *testing.T) {
	dbPath := recordScenario(t, pressScenario)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--session", harness.DefaultSession})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "[1] added #1 touch (10,20)")
	assert.Contains(t, out, "[2] pressed #1 touch (12,24) owner=overlay")
	assert.Contains(t, out, "[4] removed #1 touch (12,24)")
	assert.Contains(t, out, "Cycles: 4, Events: 5, Pointers: 1")
	assert.Contains(t, out, "updated: 1")
}

func TestTraceJSONOutput(t *testing.T) {
	dbPath := recordScenario(t, pressScenario)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--session", harness.DefaultSession})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(5), data["events"])
	assert.Equal(t, float64(1), data["pointers"])

	trace, ok := data["trace"].([]any)
	require.True(t, ok)
	require.Len(t, trace, 5)
	first, ok := trace[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "added", first["category"])
	assert.Equal(t, float64(1), first["pointer"])
}
