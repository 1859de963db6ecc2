package recorder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessen-io/stagehand/internal/engine"
)

func openTest(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecorderRoundTrip(t *testing.T) {
	r := openTest(t)
	ctx := context.Background()

	run, err := r.StartRun(ctx, "checkout")
	require.NoError(t, err)
	require.NotEmpty(t, run.ID())

	run.Record(engine.TraceEntry{Step: 0, Node: "seed", Kind: "bind", Detail: "5"})
	run.Record(engine.TraceEntry{Step: 0, Node: "place", Kind: "send", Detail: `{"op":"place"}`})
	run.Record(engine.TraceEntry{Step: 1, Scope: "login", Node: "challenge", Kind: "recv", Detail: `"ok"`})
	require.NoError(t, run.Err())

	verdict := &engine.Verdict{Status: engine.StatusPass, Fired: 3, Steps: 1}
	require.NoError(t, run.Finish(ctx, verdict))

	summary, firings, err := r.ReadRun(ctx, run.ID())
	require.NoError(t, err)

	assert.Equal(t, "checkout", summary.Scenario)
	assert.Equal(t, "pass", summary.Status)
	assert.Equal(t, 3, summary.Fired)
	assert.Equal(t, int64(1), summary.Steps)

	require.Len(t, firings, 3)
	assert.Equal(t, int64(1), firings[0].Seq)
	assert.Equal(t, "seed", firings[0].Node)
	assert.Equal(t, "send", firings[1].Kind)
	assert.Equal(t, "login", firings[2].Scope)
	assert.Equal(t, int64(1), firings[2].Step)
}

func TestRecorderFailedRun(t *testing.T) {
	r := openTest(t)
	ctx := context.Background()

	run, err := r.StartRun(ctx, "broken")
	require.NoError(t, err)

	verdict := &engine.Verdict{
		Status:  engine.StatusError,
		Failure: "UNBOUND_VARIABLE: variable is not bound in this scope",
	}
	require.NoError(t, run.Finish(ctx, verdict))

	summary, firings, err := r.ReadRun(ctx, run.ID())
	require.NoError(t, err)
	assert.Equal(t, "error", summary.Status)
	assert.Contains(t, summary.Failure, "UNBOUND_VARIABLE")
	assert.Empty(t, firings)
}

func TestRecorderListRuns(t *testing.T) {
	r := openTest(t)
	ctx := context.Background()

	first, err := r.StartRun(ctx, "one")
	require.NoError(t, err)
	second, err := r.StartRun(ctx, "two")
	require.NoError(t, err)

	runs, err := r.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Most recent first; UUIDv7 ids order by creation within a second.
	assert.Equal(t, second.ID(), runs[0].ID)
	assert.Equal(t, first.ID(), runs[1].ID)
	assert.Equal(t, "running", runs[0].Status)
}

func TestReadRunUnknownID(t *testing.T) {
	r := openTest(t)
	_, _, err := r.ReadRun(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
