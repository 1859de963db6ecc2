package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessen-io/stagehand/internal/value"
)

func lit(v value.Value) value.Pattern {
	return value.Literal{Value: v}
}

func TestBuilderDuplicateName(t *testing.T) {
	b := NewBuilder()
	_, err := b.AddNode("a", &DelayOp{Steps: 1}, RequireNone)
	require.NoError(t, err)

	_, err = b.AddNode("a", &DelayOp{Steps: 1}, RequireNone)
	require.Error(t, err)

	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrCodeDuplicateNode, be.Code)
	assert.Equal(t, "a", be.Node)
}

func TestBuilderUnknownEdgeTarget(t *testing.T) {
	b := NewBuilder()
	_, err := b.AddNode("a", &DelayOp{Steps: 1}, RequireNone)
	require.NoError(t, err)

	err = b.AddEdgeByName("missing", "a")
	require.Error(t, err)

	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrCodeUnknownNode, be.Code)
}

func TestBuildDetectsCycle(t *testing.T) {
	b := NewBuilder()
	a, _ := b.AddNode("a", &DelayOp{Steps: 1}, RequireNone)
	c, _ := b.AddNode("b", &DelayOp{Steps: 1}, RequireNone)
	require.NoError(t, b.AddEdge(a, c))
	require.NoError(t, b.AddEdge(c, a))

	_, err := b.Build()
	require.Error(t, err)

	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrCodeCycle, be.Code)
}

func TestBuildRespondMustTargetRecv(t *testing.T) {
	b := NewBuilder()
	d, _ := b.AddNode("not-a-recv", &DelayOp{Steps: 1}, RequireNone)
	_, err := b.AddNode("reply", &RespondOp{Request: d, Src: lit(value.Bool(true))}, RequireNone)
	require.NoError(t, err)

	_, err = b.Build()
	require.Error(t, err)

	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrCodeBadRespondTarget, be.Code)
	assert.Equal(t, "reply", be.Node)
}

func TestBuildRespondGetsImplicitEdge(t *testing.T) {
	b := NewBuilder()
	rcv, _ := b.AddNode("request", &RecvOp{At: "svc", Dst: lit(value.Bool(true))}, RequireNone)
	rsp, _ := b.AddNode("reply", &RespondOp{Request: rcv, Src: lit(value.Bool(true))}, RequireNone)

	g, err := b.Build()
	require.NoError(t, err)
	assert.Contains(t, g.Preds(rsp), rcv)
}

func TestBuildRejectsZeroDelay(t *testing.T) {
	b := NewBuilder()
	_, err := b.AddNode("wait", &DelayOp{Steps: 0}, RequireNone)
	require.NoError(t, err)

	_, err = b.Build()
	require.Error(t, err)

	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrCodeBadNode, be.Code)
}

func TestBuildRejectsNilCallGraph(t *testing.T) {
	b := NewBuilder()
	_, err := b.AddNode("sub", &CallOp{Callee: "other"}, RequireNone)
	require.NoError(t, err)

	_, err = b.Build()
	require.Error(t, err)
	assert.True(t, IsBuildError(err))
}

func TestGraphAccessors(t *testing.T) {
	b := NewBuilder()
	a, _ := b.AddNode("first", &DelayOp{Steps: 1}, RequireComplete)
	c, _ := b.AddNode("second", &DelayOp{Steps: 1}, RequireNone)
	require.NoError(t, b.AddEdgeByName("first", "second"))

	g, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []NodeID{c}, g.Succ(a))
	assert.Equal(t, []NodeID{a}, g.Preds(c))

	id, ok := g.Lookup("second")
	require.True(t, ok)
	assert.Equal(t, c, id)
	assert.Equal(t, RequireComplete, g.Node(a).Require)
}
