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

	"github.com/tessen-io/stagehand/internal/recorder"
)

// The run command drives scenarios against an unscripted loopback: sends
// are accepted and dropped, so passing fixtures must not require replies.
const passingScenario = `name: fire-and-forget
cast: [service]
dummies: [client]
events:
  - id: ask
    send:
      from: client
      to: service
      message: {op: "ping"}
`

const failingScenario = `name: wait-forever
cast: [service]
dummies: [client]
events:
  - id: ask
    send:
      from: client
      to: service
      message: {op: "ping"}
  - id: answer
    happens_after: [ask]
    require: complete
    recv:
      at: client
      message: "$reply"
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunPassingScenario(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "pass.yaml", passingScenario)

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ fire-and-forget passed")
}

func TestRunFailingScenario(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "fail.yaml", failingScenario)

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ wait-forever failed")
	assert.Contains(t, output, "require complete: answer is ready")
}

func TestRunPassingScenarioJSON(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "pass.yaml", passingScenario)

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "fire-and-forget", data["scenario"])

	verdict, ok := data["verdict"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pass", verdict["status"])
	assert.Equal(t, float64(1), verdict["fired"])
}

func TestRunMissingScenario(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope.yaml")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "E_LOAD")
}

func TestRunRecordsToDatabase(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "pass.yaml", passingScenario)
	dbPath := filepath.Join(dir, "runs.db")

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path, "--record", dbPath, "--deterministic"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "recorded as run ")

	rec, err := recorder.Open(dbPath)
	require.NoError(t, err)
	defer rec.Close()

	runs, err := rec.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "fire-and-forget", runs[0].Scenario)
	assert.Equal(t, "pass", runs[0].Status)
	assert.Equal(t, 1, runs[0].Fired)

	_, firings, err := rec.ReadRun(context.Background(), runs[0].ID)
	require.NoError(t, err)
	require.Len(t, firings, 1)
	assert.Equal(t, "send", firings[0].Kind)
	assert.Equal(t, "ask", firings[0].Node)
}
