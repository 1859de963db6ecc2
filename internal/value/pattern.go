package value

import (
	"fmt"
	"strings"
)

// Pattern is a sealed interface over the closed set of pattern shapes used
// for matching and templating payloads. A Pattern is a Value tree where
// strings beginning with '$' are interpreted:
//
//	"$name"  variable reference (bind on match, substitute on resolve)
//	"$_"     wildcard (matches anything, binds nothing)
//	"$$x"    literal string "$x" (escape)
//
// Only the types in this package implement it.
type Pattern interface {
	pattern() // sealed
}

// Literal matches (or produces) exactly the wrapped Value.
type Literal struct {
	Value Value
}

func (Literal) pattern() {}

// Variable references a named slot in a binding environment.
type Variable struct {
	Name string
}

func (Variable) pattern() {}

// Wildcard matches any Value without binding.
type Wildcard struct{}

func (Wildcard) pattern() {}

// ArrayPattern matches the leading elements of an Array positionally;
// elements beyond the pattern's length are ignored.
type ArrayPattern []Pattern

func (ArrayPattern) pattern() {}

// ObjectPattern matches an Object containing at least the pattern's keys;
// keys present only in the value are ignored.
type ObjectPattern map[string]Pattern

func (ObjectPattern) pattern() {}

// CompilePattern interprets a Value tree as a Pattern, decoding the '$'
// string convention. Composite values compile recursively; everything else
// becomes a Literal.
func CompilePattern(v Value) (Pattern, error) {
	switch val := v.(type) {
	case String:
		return compileStringPattern(string(val))
	case Array:
		arr := make(ArrayPattern, len(val))
		for i, elem := range val {
			p, err := CompilePattern(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = p
		}
		return arr, nil
	case Object:
		obj := make(ObjectPattern, len(val))
		for k, elem := range val {
			p, err := CompilePattern(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = p
		}
		return obj, nil
	case nil:
		return nil, fmt.Errorf("nil Value is not a pattern")
	default:
		return Literal{Value: val}, nil
	}
}

func compileStringPattern(s string) (Pattern, error) {
	if !strings.HasPrefix(s, "$") {
		return Literal{Value: String(s)}, nil
	}
	if strings.HasPrefix(s, "$$") {
		return Literal{Value: String(s[1:])}, nil
	}
	name := s[1:]
	if name == "" {
		return nil, fmt.Errorf("invalid pattern string %q: '$' must be followed by a variable name, '_', or '$'", s)
	}
	if name == "_" {
		return Wildcard{}, nil
	}
	return Variable{Name: name}, nil
}
