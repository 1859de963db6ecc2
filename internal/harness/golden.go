package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/tessen-io/stagehand/internal/engine"
	"github.com/tessen-io/stagehand/internal/value"
)

// TraceSnapshot captures one run for golden comparison. Serialization is
// canonical JSON, so structurally equal runs snapshot to identical bytes.
type TraceSnapshot struct {
	ScenarioName string
	Verdict      *engine.Verdict
	Trace        []engine.TraceEntry
}

// toCanonicalMap flattens the snapshot into plain Go values for canonical
// JSON serialization. Empty optional fields are omitted.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, e := range s.Trace {
		entry := map[string]any{
			"seq":  i,
			"step": e.Step,
			"node": e.Node,
			"kind": e.Kind,
		}
		if e.Scope != "" {
			entry["scope"] = e.Scope
		}
		if e.Detail != "" {
			entry["detail"] = e.Detail
		}
		trace[i] = entry
	}

	out := map[string]any{
		"scenario_name": s.ScenarioName,
		"status":        string(s.Verdict.Status),
		"fired":         s.Verdict.Fired,
		"steps":         s.Verdict.Steps,
		"trace":         trace,
	}
	if len(s.Verdict.Unmet) > 0 {
		unmet := make([]any, len(s.Verdict.Unmet))
		for i, u := range s.Verdict.Unmet {
			m := map[string]any{
				"node":    u.Node,
				"require": u.Require,
				"state":   u.State,
			}
			if u.Scope != "" {
				m["scope"] = u.Scope
			}
			if u.Reason != "" {
				m["reason"] = u.Reason
			}
			unmet[i] = m
		}
		out["unmet"] = unmet
	}
	return out
}

// RunWithGolden executes a scenario and compares its trace snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(sc)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, sc.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already-obtained result against the named golden
// file, for callers that run the scenario themselves.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: name,
		Verdict:      result.Verdict,
		Trace:        result.Trace,
	}

	v, err := value.FromGo(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}
	data, err := value.MarshalCanonical(v)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
