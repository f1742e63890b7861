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

// recordScenario runs the simulate command with --db and returns the
// database path holding the recorded session.
func recordScenario(t *testing.T, content string) string {
	t.Helper()
	path := writeScenario(t, content)
	dbPath := filepath.Join(t.TempDir(), "events.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSimulateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--scenario", path, "--db", dbPath})
	require.NoError(t, cmd.Execute())

	return dbPath
}

func TestReplayMissingFlags(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayUnknownSession(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "events.db")
	store, err := eventlog.Open(dbPath)
	require.NoError(t, err)
	store.Close()

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--session", "no-such-session"})

	err = cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayDeterministicRoundTrip(t *testing.T) {
	dbPath := recordScenario(t, pressScenario)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--session", harness.DefaultSession})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "Replay: deterministic")
	assert.Contains(t, out, "Cycles: 4, Events: 5")
}

func TestReplayJSONOutput(t *testing.T) {
	dbPath := recordScenario(t, pressScenario)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--session", harness.DefaultSession})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["deterministic"])
	assert.Equal(t, float64(4), data["cycles"])
}

func TestReplayTwoPointerSession(t *testing.T) {
	scenario := `
name: cli-two-finger
description: Two concurrent touches claimed by different layers
layers:
  - overlay
  - background
hittest:
  f1: overlay
  f2: background
cycles:
  - steps:
      - add: {id: f1, kind: touch, x: 10, y: 10}
      - add: {id: f2, kind: touch, x: 50, y: 50}
  - steps:
      - press: {id: f1}
      - press: {id: f2}
      - update: {id: f1, x: 11, y: 11}
  - steps:
      - release: {id: f1}
      - cancel: {id: f2}
  - steps:
      - remove: {id: f1}
assertions:
  - type: owner
    cycle: 2
    id: f2
    layer: background
  - type: live_count
    count: 0
`
	dbPath := recordScenario(t, scenario)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--session", harness.DefaultSession})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Replay: deterministic")
}
