package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmcln/pointerhub/internal/eventlog"
	"github.com/tmcln/pointerhub/internal/harness"
)

const pressScenario = `
name: cli-press
description: Press lifecycle for command tests
layers:
  - overlay
  - background
hittest:
  f1: overlay
cycles:
  - steps:
      - add: {id: f1, kind: touch, x: 10, y: 20}
  - steps:
      - press: {id: f1}
      - update: {id: f1, x: 12, y: 24, buttons: [primary]}
  - steps:
      - release: {id: f1}
  - steps:
      - remove: {id: f1}
assertions:
  - type: owner
    cycle: 2
    id: f1
    layer: overlay
  - type: live_count
    count: 0
  - type: pressed_count
    count: 0
`

// writeScenario drops a scenario file into a temp dir and returns its path.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestSimulateMissingScenarioFlag(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSimulateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "scenario")
}

func TestSimulateScenarioNotFound(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSimulateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--scenario", "/nonexistent/scenario.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load scenario")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSimulateTextOutput(t *testing.T) {
	path := writeScenario(t, pressScenario)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSimulateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--scenario", path})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "Scenario: cli-press")
	assert.Contains(t, out, "Session: "+harness.DefaultSession)
	assert.Contains(t, out, "Assertions passed: 3")
	assert.Contains(t, out, "0 live, 0 pressed")
}

func TestSimulateJSONOutput(t *testing.T) {
	path := writeScenario(t, pressScenario)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewSimulateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--scenario", path})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "cli-press", data["scenario"])
	assert.Equal(t, float64(4), data["cycles"])
	assert.Equal(t, float64(5), data["events"])
	assert.Equal(t, false, data["recorded"])
}

func TestSimulateAssertionFailure(t *testing.T) {
	failing := pressScenario + `  - type: batch_count
    category: cancelled
    count: 7
`
	path := writeScenario(t, failing)

	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSimulateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{"--scenario", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), `scenario "cli-press" failed`)
	assert.Contains(t, errBuf.String(), "Assertion failed")
}

func TestSimulateRecordsToDatabase(t *testing.T) {
	path := writeScenario(t, pressScenario)
	dbPath := filepath.Join(t.TempDir(), "events.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSimulateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--scenario", path, "--db", dbPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "recorded to event log")

	store, err := eventlog.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	cycles, err := store.ReadCycles(context.Background(), harness.DefaultSession)
	require.NoError(t, err)
	require.Len(t, cycles, 4)
	assert.Equal(t, int64(1), cycles[0].Seq)
	assert.Equal(t, "overlay", cycles[1].Events[1].Owner)
}
