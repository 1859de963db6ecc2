package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFullDocument(t *testing.T) {
	doc, err := Parse([]byte(`
name: checkout
description: order placement round trip
cast:
  - orders
dummies:
  - probe
subroutines:
  - load: lib/login.yaml
    as: login
events:
  - id: seed
    bind:
      dst: "$sku"
      src: "widget-1"
    require: complete
  - id: place
    happens_after: [seed]
    send:
      from: probe
      to: orders
      message:
        op: place
        sku: "$sku"
  - id: confirmed
    recv:
      at: probe
      from: orders
      message:
        status: accepted
        order: "$order"
    require: complete
`))
	require.NoError(t, err)

	assert.Equal(t, "checkout", doc.Name)
	assert.Equal(t, []string{"orders"}, doc.Cast)
	assert.Equal(t, []string{"probe"}, doc.Dummies)
	require.Len(t, doc.Subroutines, 1)
	assert.Equal(t, "login", doc.Subroutines[0].As)

	require.Len(t, doc.Events, 3)
	assert.NotNil(t, doc.Events[0].Bind)
	assert.NotNil(t, doc.Events[1].Send)
	assert.NotNil(t, doc.Events[2].Recv)
	assert.Equal(t, []string{"seed"}, doc.Events[1].HappensAfter)
	assert.Equal(t, "complete", doc.Events[2].Require)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`
name: typo
events:
  - id: a
    delay:
      steps: 1
    happens_befor: [b]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "happens_befor")
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			"missing name",
			"events:\n  - id: a\n    delay: {steps: 1}\n",
			"name is required",
		},
		{
			"no events",
			"name: empty\n",
			"events list is required",
		},
		{
			"missing event id",
			"name: s\nevents:\n  - delay: {steps: 1}\n",
			"id is required",
		},
		{
			"duplicate event id",
			"name: s\nevents:\n  - id: a\n    delay: {steps: 1}\n  - id: a\n    delay: {steps: 1}\n",
			`duplicate id "a"`,
		},
		{
			"no kind",
			"name: s\nevents:\n  - id: a\n",
			"exactly one of",
		},
		{
			"two kinds",
			"name: s\nevents:\n  - id: a\n    delay: {steps: 1}\n    bind: {dst: \"$x\", src: 1}\n",
			"exactly one of",
		},
		{
			"bad require",
			"name: s\nevents:\n  - id: a\n    delay: {steps: 1}\n    require: reached\n",
			"require must be",
		},
		{
			"subroutine without alias",
			"name: s\nsubroutines:\n  - load: sub.yaml\nevents:\n  - id: a\n    delay: {steps: 1}\n",
			"as is required",
		},
		{
			"duplicate alias",
			"name: s\nsubroutines:\n  - load: a.yaml\n    as: x\n  - load: b.yaml\n    as: x\nevents:\n  - id: a\n    delay: {steps: 1}\n",
			`duplicate alias "x"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
