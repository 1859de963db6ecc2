package scenario

import (
	"fmt"
	"slices"

	"github.com/tessen-io/stagehand/internal/engine"
	"github.com/tessen-io/stagehand/internal/value"
)

// Build compiles a loaded unit into an executable graph, returning the
// graph and the full participant list (the unit's dummies plus those of
// every subroutine, since mailboxes are shared across call scopes).
func Build(unit *Unit) (*engine.Graph, []string, error) {
	g, err := buildGraph(unit)
	if err != nil {
		return nil, nil, err
	}
	return g, collectDummies(unit), nil
}

func buildGraph(unit *Unit) (*engine.Graph, error) {
	doc := unit.Doc
	b := engine.NewBuilder()

	cast := toSet(doc.Cast)
	dummies := toSet(doc.Dummies)

	// First pass: add every event so happens_after and to_request can
	// reference events declared later.
	responds := make(map[string]*engine.RespondOp)
	for _, ev := range doc.Events {
		op, err := compileOp(unit, ev, cast, dummies)
		if err != nil {
			return nil, err
		}
		if rop, ok := op.(*engine.RespondOp); ok {
			responds[ev.ID] = rop
		}
		if _, err := b.AddNode(ev.ID, op, compileRequire(ev.Require)); err != nil {
			return nil, err
		}
	}

	// Respond targets resolve by name once all ids are known.
	for _, ev := range doc.Events {
		if ev.Respond == nil {
			continue
		}
		target, ok := b.Lookup(ev.Respond.ToRequest)
		if !ok {
			return nil, &engine.BuildError{
				Code:    engine.ErrCodeUnknownNode,
				Message: fmt.Sprintf("to_request references unknown event %q", ev.Respond.ToRequest),
				Node:    ev.ID,
			}
		}
		responds[ev.ID].Request = target
	}

	for _, ev := range doc.Events {
		for _, after := range ev.HappensAfter {
			if err := b.AddEdgeByName(after, ev.ID); err != nil {
				return nil, err
			}
		}
	}

	return b.Build()
}

func compileOp(unit *Unit, ev Event, cast, dummies map[string]bool) (engine.Op, error) {
	switch {
	case ev.Bind != nil:
		dst, err := compilePattern(ev.ID, "bind.dst", ev.Bind.Dst)
		if err != nil {
			return nil, err
		}
		src, err := compilePattern(ev.ID, "bind.src", ev.Bind.Src)
		if err != nil {
			return nil, err
		}
		return &engine.BindOp{Dst: dst, Src: src}, nil

	case ev.Send != nil:
		if !dummies[ev.Send.From] {
			return nil, badParticipant(ev.ID, "send.from", ev.Send.From, "dummy")
		}
		if ev.Send.To != "" && !cast[ev.Send.To] {
			return nil, badParticipant(ev.ID, "send.to", ev.Send.To, "cast member")
		}
		src, err := compilePattern(ev.ID, "send.message", ev.Send.Message)
		if err != nil {
			return nil, err
		}
		return &engine.SendOp{From: ev.Send.From, To: ev.Send.To, Src: src}, nil

	case ev.Recv != nil:
		if !dummies[ev.Recv.At] {
			return nil, badParticipant(ev.ID, "recv.at", ev.Recv.At, "dummy")
		}
		if ev.Recv.From != "" && !cast[ev.Recv.From] {
			return nil, badParticipant(ev.ID, "recv.from", ev.Recv.From, "cast member")
		}
		dst, err := compilePattern(ev.ID, "recv.message", ev.Recv.Message)
		if err != nil {
			return nil, err
		}
		return &engine.RecvOp{At: ev.Recv.At, From: ev.Recv.From, Dst: dst}, nil

	case ev.Respond != nil:
		src, err := compilePattern(ev.ID, "respond.message", ev.Respond.Message)
		if err != nil {
			return nil, err
		}
		// Request id is patched after all events exist.
		return &engine.RespondOp{Src: src}, nil

	case ev.Delay != nil:
		steps := int64(1)
		if ev.Delay.Steps != nil {
			steps = *ev.Delay.Steps
		}
		return &engine.DelayOp{Steps: steps}, nil

	case ev.Call != nil:
		sub, ok := unit.Subs[ev.Call.Subroutine]
		if !ok {
			return nil, &engine.BuildError{
				Code:    engine.ErrCodeUnknownNode,
				Message: fmt.Sprintf("call references unknown subroutine %q", ev.Call.Subroutine),
				Node:    ev.ID,
			}
		}
		subGraph, err := buildGraph(sub)
		if err != nil {
			return nil, fmt.Errorf("subroutine %q: %w", ev.Call.Subroutine, err)
		}
		in, err := compileWires(ev.ID, "in", ev.Call.In)
		if err != nil {
			return nil, err
		}
		out, err := compileWires(ev.ID, "out", ev.Call.Out)
		if err != nil {
			return nil, err
		}
		return &engine.CallOp{Callee: ev.Call.Subroutine, Graph: subGraph, In: in, Out: out}, nil

	default:
		// validateDocument guarantees one kind; unreachable.
		return nil, fmt.Errorf("event %q has no kind", ev.ID)
	}
}

func compileRequire(s string) engine.Require {
	switch s {
	case "complete":
		return engine.RequireComplete
	case "incomplete":
		return engine.RequireIncomplete
	default:
		return engine.RequireNone
	}
}

func compilePattern(eventID, field string, raw any) (value.Pattern, error) {
	v, err := value.FromGo(raw)
	if err != nil {
		return nil, &engine.BuildError{
			Code:    engine.ErrCodeBadNode,
			Message: fmt.Sprintf("%s: %v", field, err),
			Node:    eventID,
		}
	}
	p, err := value.CompilePattern(v)
	if err != nil {
		return nil, &engine.BuildError{
			Code:    engine.ErrCodeBadNode,
			Message: fmt.Sprintf("%s: %v", field, err),
			Node:    eventID,
		}
	}
	return p, nil
}

func compileWires(eventID, field string, specs []WireSpec) ([]engine.Wire, error) {
	wires := make([]engine.Wire, len(specs))
	for i, spec := range specs {
		src, err := compilePattern(eventID, fmt.Sprintf("%s[%d].src", field, i), spec.Src)
		if err != nil {
			return nil, err
		}
		dst, err := compilePattern(eventID, fmt.Sprintf("%s[%d].dst", field, i), spec.Dst)
		if err != nil {
			return nil, err
		}
		wires[i] = engine.Wire{Src: src, Dst: dst}
	}
	return wires, nil
}

func badParticipant(eventID, field, name, role string) error {
	return &engine.BuildError{
		Code:    engine.ErrCodeUnknownNode,
		Message: fmt.Sprintf("%s: %q is not a declared %s", field, name, role),
		Node:    eventID,
	}
}

// collectDummies gathers the dummies of a unit and all its subroutines,
// deduplicated and sorted.
func collectDummies(unit *Unit) []string {
	seen := make(map[string]bool)
	var walk func(*Unit)
	walk = func(u *Unit) {
		for _, d := range u.Doc.Dummies {
			seen[d] = true
		}
		for _, sub := range u.Subs {
			walk(sub)
		}
	}
	walk(unit)

	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
