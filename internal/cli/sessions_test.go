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

func TestSessionsEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "events.db")
	store, err := eventlog.Open(dbPath)
	require.NoError(t, err)
	store.Close()

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSessionsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No sessions recorded")
}

func TestSessionsListsRecorded(t *testing.T) {
	dbPath := recordScenario(t, pressScenario)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSessionsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), harness.DefaultSession)
}

func TestSessionsJSONOutput(t *testing.T) {
	dbPath := recordScenario(t, pressScenario)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewSessionsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	sessions, ok := data["sessions"].([]any)
	require.True(t, ok)
	require.Len(t, sessions, 1)
	assert.Equal(t, harness.DefaultSession, sessions[0])
}
