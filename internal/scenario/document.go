package scenario

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is the YAML form of a scenario: the participants, the
// subroutines it pulls in, and the event graph.
type Document struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description,omitempty"`

	// Cast lists the actors of the system under test that the scenario
	// addresses. Sends target cast members; recvs may filter on them.
	Cast []string `yaml:"cast,omitempty"`

	// Dummies lists the scripted participants the scenario plays. Each
	// dummy owns a mailbox; sends originate from dummies.
	Dummies []string `yaml:"dummies,omitempty"`

	// Subroutines pulls in other scenario files callable via call events.
	Subroutines []SubroutineRef `yaml:"subroutines,omitempty"`

	// Events is the scenario graph, in declaration (priority) order.
	Events []Event `yaml:"events"`
}

// SubroutineRef names a scenario file and the alias call events use.
type SubroutineRef struct {
	// Load is the scenario file path, resolved against the including
	// file's directory and then the loader's search path.
	Load string `yaml:"load"`

	// As is the alias call events refer to.
	As string `yaml:"as"`
}

// Event is one node of the scenario graph. Exactly one of the kind fields
// (bind, send, recv, respond, delay, call) must be set.
type Event struct {
	// ID names the event; unique within the document.
	ID string `yaml:"id"`

	// HappensAfter lists events that must complete before this one starts.
	HappensAfter []string `yaml:"happens_after,omitempty"`

	// Require states the terminal expectation: "complete", "incomplete",
	// or empty (no expectation).
	Require string `yaml:"require,omitempty"`

	Bind    *BindEvent    `yaml:"bind,omitempty"`
	Send    *SendEvent    `yaml:"send,omitempty"`
	Recv    *RecvEvent    `yaml:"recv,omitempty"`
	Respond *RespondEvent `yaml:"respond,omitempty"`
	Delay   *DelayEvent   `yaml:"delay,omitempty"`
	Call    *CallEvent    `yaml:"call,omitempty"`
}

// BindEvent unifies dst against the resolved src in the current scope.
type BindEvent struct {
	Dst any `yaml:"dst"`
	Src any `yaml:"src"`
}

// SendEvent dispatches a message from a dummy to a cast member. When To is
// empty the transport routes the message to a destination of its choosing.
type SendEvent struct {
	From    string `yaml:"from"`
	To      string `yaml:"to,omitempty"`
	Message any    `yaml:"message"`
}

// RecvEvent consumes the head of a dummy's mailbox once it matches.
type RecvEvent struct {
	// At is the dummy whose mailbox this recv watches.
	At string `yaml:"at"`

	// From optionally restricts the accepted sender.
	From string `yaml:"from,omitempty"`

	Message any `yaml:"message"`
}

// RespondEvent answers the request consumed by an earlier recv event.
type RespondEvent struct {
	// ToRequest is the id of the recv event whose request this answers.
	ToRequest string `yaml:"to_request"`

	Message any `yaml:"message"`
}

// DelayEvent completes after the given number of simulated clock steps.
// Steps defaults to one when omitted.
type DelayEvent struct {
	Steps *int64 `yaml:"steps,omitempty"`
}

// CallEvent runs a subroutine's graph in a fresh scope.
type CallEvent struct {
	// Subroutine is the alias declared under subroutines.
	Subroutine string `yaml:"subroutine"`

	// In copies caller values into the callee scope before it starts.
	In []WireSpec `yaml:"in,omitempty"`

	// Out copies callee values back once the callee's requirements hold.
	Out []WireSpec `yaml:"out,omitempty"`
}

// WireSpec is one value copy across a call boundary.
type WireSpec struct {
	Src any `yaml:"src"`
	Dst any `yaml:"dst"`
}

// Parse decodes a scenario document. Unknown fields are rejected so typos
// fail loudly instead of silently dropping an event attribute.
func Parse(data []byte) (*Document, error) {
	var doc Document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateDocument(&doc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &doc, nil
}

// validateDocument checks required fields and the one-kind-per-event rule.
// Structural graph checks (unknown ids, cycles) happen at build time.
func validateDocument(doc *Document) error {
	if doc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(doc.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(doc.Events))
	for i, ev := range doc.Events {
		if ev.ID == "" {
			return fmt.Errorf("events[%d]: id is required", i)
		}
		if seen[ev.ID] {
			return fmt.Errorf("events[%d]: duplicate id %q", i, ev.ID)
		}
		seen[ev.ID] = true

		kinds := 0
		if ev.Bind != nil {
			kinds++
		}
		if ev.Send != nil {
			kinds++
		}
		if ev.Recv != nil {
			kinds++
		}
		if ev.Respond != nil {
			kinds++
		}
		if ev.Delay != nil {
			kinds++
		}
		if ev.Call != nil {
			kinds++
		}
		if kinds != 1 {
			return fmt.Errorf("events[%d] (%s): exactly one of bind/send/recv/respond/delay/call is required, got %d", i, ev.ID, kinds)
		}

		switch ev.Require {
		case "", "complete", "incomplete":
		default:
			return fmt.Errorf("events[%d] (%s): require must be \"complete\" or \"incomplete\", got %q", i, ev.ID, ev.Require)
		}
	}

	aliases := make(map[string]bool, len(doc.Subroutines))
	for i, sub := range doc.Subroutines {
		if sub.Load == "" {
			return fmt.Errorf("subroutines[%d]: load is required", i)
		}
		if sub.As == "" {
			return fmt.Errorf("subroutines[%d]: as is required", i)
		}
		if aliases[sub.As] {
			return fmt.Errorf("subroutines[%d]: duplicate alias %q", i, sub.As)
		}
		aliases[sub.As] = true
	}

	return nil
}
