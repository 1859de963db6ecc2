package engine

import (
	"fmt"
	"slices"

	"github.com/tessen-io/stagehand/internal/value"
)

// Env is a write-once binding environment. Each call scope owns exactly one
// Env: a variable can be bound at most once for the lifetime of the scope,
// and bindings are never removed or shadowed.
//
// All writes go through a Txn so that a structural match either commits
// every binding it produced or none of them.
type Env struct {
	bindings map[string]value.Value
}

// NewEnv creates an empty environment.
func NewEnv() *Env {
	return &Env{bindings: make(map[string]value.Value)}
}

// Lookup returns the value bound to name, if any.
func (e *Env) Lookup(name string) (value.Value, bool) {
	v, ok := e.bindings[name]
	return v, ok
}

// Names returns the bound variable names in sorted order.
func (e *Env) Names() []string {
	names := make([]string, 0, len(e.bindings))
	for name := range e.bindings {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Snapshot returns the bindings as an Object, for traces and diagnostics.
func (e *Env) Snapshot() value.Object {
	obj := make(value.Object, len(e.bindings))
	for name, v := range e.bindings {
		obj[name] = v
	}
	return obj
}

// Txn stages bindings against an Env without publishing them. Commit makes
// all staged bindings visible at once; dropping the Txn discards them.
//
// A staged binding observes the write-once rule immediately: re-binding a
// name (already committed or staged in this Txn) succeeds only if the new
// value is structurally equal to the existing one, and is a no-op.
type Txn struct {
	env    *Env
	staged map[string]value.Value
}

// Begin starts a transaction against the environment.
func (e *Env) Begin() *Txn {
	return &Txn{env: e, staged: make(map[string]value.Value)}
}

// Lookup returns the binding visible inside the transaction: staged writes
// first, then the committed environment.
func (t *Txn) Lookup(name string) (value.Value, bool) {
	if v, ok := t.staged[name]; ok {
		return v, true
	}
	return t.env.Lookup(name)
}

// Bind stages a binding. If the name is already bound (committed or staged)
// the existing value wins: binding the same value again is a no-op, binding
// a different value is a conflict and returns false.
func (t *Txn) Bind(name string, v value.Value) bool {
	if existing, ok := t.Lookup(name); ok {
		return value.Equal(existing, v)
	}
	t.staged[name] = v
	return true
}

// Commit publishes all staged bindings to the environment.
func (t *Txn) Commit() {
	for name, v := range t.staged {
		t.env.bindings[name] = v
	}
	t.staged = make(map[string]value.Value)
}

// String renders the staged/committed state for debugging.
func (t *Txn) String() string {
	return fmt.Sprintf("txn{staged=%d, committed=%d}", len(t.staged), len(t.env.bindings))
}
