package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"null", Null{}, `null`},
		{"true", Bool(true), `true`},
		{"false", Bool(false), `false`},
		{"integer", Number(42), `42`},
		{"integral float prints as integer", Number(3.0), `3`},
		{"negative", Number(-7), `-7`},
		{"fraction", Number(1.5), `1.5`},
		{"string", String("hello"), `"hello"`},
		{"no html escaping", String("<a>&</a>"), `"<a>&</a>"`},
		{"control chars escaped", String("a\nb"), `"a\nb"`},
		{"empty array", Array{}, `[]`},
		{"empty object", Object{}, `{}`},
		{
			"object keys sorted",
			Object{"b": Number(2), "a": Number(1)},
			`{"a":1,"b":2}`,
		},
		{
			"nested",
			Object{"xs": Array{Number(1), String("s"), Null{}}},
			`{"xs":[1,"s",null]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute (NFD) must normalize to the precomposed form.
	nfd := String("cafe\u0301")
	nfc := String("caf\u00e9")

	a, err := MarshalCanonical(nfd)
	require.NoError(t, err)
	b, err := MarshalCanonical(nfc)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	// U+2028/U+2029 stay literal per RFC 8785.
	got, err := MarshalCanonical(String("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(got))

	// A literal backslash followed by the text "u2028" stays escaped.
	got, err = MarshalCanonical(String("a\\u2028b"))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(got))
}

func TestMarshalCanonicalRejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(Number(math.Inf(1)))
	assert.Error(t, err)

	_, err = MarshalCanonical(Number(math.NaN()))
	assert.Error(t, err)
}

func TestHashDeterministic(t *testing.T) {
	a := Object{"x": Number(1), "y": Array{String("s"), Bool(true)}}
	b := Object{"y": Array{String("s"), Bool(true)}, "x": Number(1)}

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
}
