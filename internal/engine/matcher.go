package engine

import (
	"fmt"

	"github.com/tessen-io/stagehand/internal/value"
)

// Resolve instantiates a pattern against an environment, substituting every
// variable with its bound value. Wildcards and unbound variables cannot be
// resolved: a pattern used as a message template or copy source must be
// fully determined.
//
// An unbound variable is fatal to the run; node names the resolving node
// for diagnostics.
func Resolve(p value.Pattern, env *Env, node string) (value.Value, error) {
	switch pat := p.(type) {
	case value.Literal:
		return pat.Value, nil
	case value.Variable:
		v, ok := env.Lookup(pat.Name)
		if !ok {
			return nil, NewUnboundVariableError(node, pat.Name)
		}
		return v, nil
	case value.Wildcard:
		return nil, &RunError{
			Code:    ErrCodeUnboundVariable,
			Message: "wildcard cannot be resolved to a value",
			Node:    node,
		}
	case value.ArrayPattern:
		arr := make(value.Array, len(pat))
		for i, elem := range pat {
			v, err := Resolve(elem, env, node)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil
	case value.ObjectPattern:
		obj := make(value.Object, len(pat))
		for k, elem := range pat {
			v, err := Resolve(elem, env, node)
			if err != nil {
				return nil, err
			}
			obj[k] = v
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported pattern type: %T", p)
	}
}

// Match unifies a pattern with a value, staging variable bindings in the
// transaction. Returns true on success; on failure returns false and a
// human-readable reason locating the first disagreement. Staged bindings
// from a failed Match are discarded by the caller (the Txn is never
// committed), so a mismatch leaves the environment untouched.
//
// A variable already bound (committed or staged) matches only a value
// structurally equal to its binding.
func Match(p value.Pattern, v value.Value, txn *Txn) (bool, string) {
	return match(p, v, txn, "$")
}

func match(p value.Pattern, v value.Value, txn *Txn, path string) (bool, string) {
	switch pat := p.(type) {
	case value.Wildcard:
		return true, ""

	case value.Variable:
		if !txn.Bind(pat.Name, v) {
			bound, _ := txn.Lookup(pat.Name)
			return false, fmt.Sprintf("%s: variable %q already bound to %s, got %s",
				path, pat.Name, render(bound), render(v))
		}
		return true, ""

	case value.Literal:
		if !value.Equal(pat.Value, v) {
			return false, fmt.Sprintf("%s: expected %s, got %s", path, render(pat.Value), render(v))
		}
		return true, ""

	case value.ArrayPattern:
		// Positional prefix match: the value may carry more elements than
		// the pattern names; the extras are ignored.
		arr, ok := v.(value.Array)
		if !ok {
			return false, fmt.Sprintf("%s: expected array, got %s", path, kindOf(v))
		}
		if len(arr) < len(pat) {
			return false, fmt.Sprintf("%s: expected at least %d elements, got %d", path, len(pat), len(arr))
		}
		for i, elem := range pat {
			if ok, reason := match(elem, arr[i], txn, fmt.Sprintf("%s[%d]", path, i)); !ok {
				return false, reason
			}
		}
		return true, ""

	case value.ObjectPattern:
		// Partial match: keys present only in the value are ignored.
		obj, ok := v.(value.Object)
		if !ok {
			return false, fmt.Sprintf("%s: expected object, got %s", path, kindOf(v))
		}
		// Deterministic key order so the reported reason is stable.
		keys := make(value.Object, len(pat))
		for k := range pat {
			keys[k] = value.Null{}
		}
		for _, k := range keys.SortedKeys() {
			w, present := obj[k]
			if !present {
				return false, fmt.Sprintf("%s: missing key %q", path, k)
			}
			if ok, reason := match(pat[k], w, txn, fmt.Sprintf("%s.%s", path, k)); !ok {
				return false, reason
			}
		}
		return true, ""

	default:
		return false, fmt.Sprintf("%s: unsupported pattern type %T", path, p)
	}
}

// MatchInto runs Match inside a fresh transaction and commits on success.
// This is the atomic unification used by bind and recv: either every
// binding lands or none do.
func MatchInto(p value.Pattern, v value.Value, env *Env) (bool, string) {
	txn := env.Begin()
	ok, reason := Match(p, v, txn)
	if ok {
		txn.Commit()
	}
	return ok, reason
}

// render formats a value for mismatch diagnostics.
func render(v value.Value) string {
	data, err := value.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(data)
}

func kindOf(v value.Value) string {
	switch v.(type) {
	case value.Null:
		return "null"
	case value.Bool:
		return "bool"
	case value.Number:
		return "number"
	case value.String:
		return "string"
	case value.Array:
		return "array"
	case value.Object:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
