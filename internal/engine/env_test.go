package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessen-io/stagehand/internal/value"
)

func TestEnvWriteOnce(t *testing.T) {
	env := NewEnv()

	txn := env.Begin()
	require.True(t, txn.Bind("x", value.Number(1)))
	txn.Commit()

	// Same value is a no-op.
	txn = env.Begin()
	assert.True(t, txn.Bind("x", value.Number(1)))

	// A different value conflicts.
	assert.False(t, txn.Bind("x", value.Number(2)))

	v, ok := env.Lookup("x")
	require.True(t, ok)
	assert.True(t, value.Equal(value.Number(1), v))
}

func TestTxnStagedBindsInvisibleUntilCommit(t *testing.T) {
	env := NewEnv()

	txn := env.Begin()
	require.True(t, txn.Bind("a", value.String("staged")))

	_, ok := env.Lookup("a")
	assert.False(t, ok, "staged binds must not be visible before commit")

	v, ok := txn.Lookup("a")
	require.True(t, ok, "staged binds are visible inside the transaction")
	assert.True(t, value.Equal(value.String("staged"), v))

	txn.Commit()

	v, ok = env.Lookup("a")
	require.True(t, ok)
	assert.True(t, value.Equal(value.String("staged"), v))
}

func TestTxnDiscardLeavesEnvUntouched(t *testing.T) {
	env := NewEnv()

	txn := env.Begin()
	require.True(t, txn.Bind("a", value.Number(1)))
	require.True(t, txn.Bind("b", value.Number(2)))
	// Dropped without commit.

	assert.Empty(t, env.Names())
}

func TestTxnConflictWithinTransaction(t *testing.T) {
	env := NewEnv()

	txn := env.Begin()
	require.True(t, txn.Bind("x", value.String("one")))
	assert.False(t, txn.Bind("x", value.String("two")))
	assert.True(t, txn.Bind("x", value.String("one")))
}

func TestEnvNamesSorted(t *testing.T) {
	env := NewEnv()
	txn := env.Begin()
	txn.Bind("zeta", value.Number(1))
	txn.Bind("alpha", value.Number(2))
	txn.Bind("mid", value.Number(3))
	txn.Commit()

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, env.Names())
}

func TestEnvSnapshot(t *testing.T) {
	env := NewEnv()
	txn := env.Begin()
	txn.Bind("user", value.Object{"id": value.Number(7)})
	txn.Commit()

	snap := env.Snapshot()
	assert.True(t, value.Equal(value.Object{"user": value.Object{"id": value.Number(7)}}, snap))
}
