package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphDOTOutput(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "fail.yaml", failingScenario)

	buf := &bytes.Buffer{}
	cmd := NewGraphCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "digraph wait_forever {")
	assert.Contains(t, output, `ask\n[send]`)
	assert.Contains(t, output, `answer\n[recv]`)
	// require: complete renders with a heavier border
	assert.Contains(t, output, "penwidth=2")
	// the happens_after edge plus the rest of the DOT skeleton
	assert.Contains(t, output, "n0 -> n1;")
	assert.Contains(t, output, "rankdir=TB;")
}

func TestGraphRendersCallAsCluster(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "sub.yaml", passingScenario)
	path := writeScenario(t, dir, "main.yaml", `name: with-call
subroutines:
  - load: sub.yaml
    as: sub
events:
  - id: step
    call:
      subroutine: sub
`)

	buf := &bytes.Buffer{}
	cmd := NewGraphCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "digraph with_call {")
	assert.Contains(t, output, "subgraph cluster_n0 {")
	assert.Contains(t, output, `label="step : sub";`)
	assert.Contains(t, output, "shape=oval")
}

func TestGraphMissingScenario(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewGraphCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope.yaml")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDotID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"checkout", "checkout"},
		{"wait-forever", "wait_forever"},
		{"a b.c", "a_b_c"},
		{"", "scenario"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, dotID(tt.in), "dotID(%q)", tt.in)
	}
}
