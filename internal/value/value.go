package value

import (
	"fmt"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface representing the closed set of payload shapes
// a scenario can carry: null, bool, number, string, array, object.
// Only the types in this package implement it.
type Value interface {
	value() // sealed
}

// Null represents an explicit null payload.
// Using a concrete type (rather than a nil interface) keeps the sealed
// interface total: every Value is one of the six variants.
type Null struct{}

func (Null) value() {}

// Bool represents a boolean payload value.
type Bool bool

func (Bool) value() {}

// Number represents a numeric payload value.
// Scenario payloads follow JSON semantics, so a single float64-backed
// variant covers both integers and fractions. Equality is strict: 1 and 1.0
// are the same Number, but no cross-kind coercion ever happens.
type Number float64

func (Number) value() {}

// String represents a string payload value.
type String string

func (String) value() {}

// Array is an ordered sequence of Values.
type Array []Value

func (Array) value() {}

// Object is a string-keyed mapping of Values. Insertion order is
// irrelevant; use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) value() {}

// Equal reports strict structural equality between two Values.
// No coercion: a Number never equals a String, Null only equals Null.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// FromGo converts a decoded YAML/JSON value (interface{} tree) into a Value.
// yaml.v3 produces int/float64/bool/string/nil, []interface{} and both
// map[string]interface{} and map[interface{}]interface{} shapes.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case int:
		return Number(val), nil
	case int64:
		return Number(val), nil
	case uint64:
		return Number(val), nil
	case float64:
		return Number(val), nil
	case string:
		return String(val), nil
	case Value:
		return val, nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			ev, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			ev, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = ev
		}
		return obj, nil
	case map[any]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("object key must be a string, got %T", k)
			}
			ev, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", ks, err)
			}
			obj[ks] = ev
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// SortedKeys returns the object's keys in RFC 8785 canonical order
// (UTF-16 code units). Go's sort.Strings compares UTF-8 bytes, which
// produces a different order for non-BMP runes.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units as required by
// RFC 8785 (Canonical JSON). unicode/utf16.Encode handles surrogates.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}
