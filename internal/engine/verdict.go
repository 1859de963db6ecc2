package engine

import "fmt"

// Status is the overall outcome of a run.
type Status string

const (
	// StatusPass means every requirement held at quiescence.
	StatusPass Status = "pass"

	// StatusFail means the run quiesced with at least one requirement unmet.
	StatusFail Status = "fail"

	// StatusError means the run aborted before quiescence.
	StatusError Status = "error"
)

// Unmet describes one requirement that did not hold at quiescence.
type Unmet struct {
	// Scope is the call path of the node, "" for the root scope.
	Scope string `json:"scope,omitempty"`

	// Node names the node carrying the requirement.
	Node string `json:"node"`

	// Require is the expectation that failed ("complete" or "incomplete").
	Require string `json:"require"`

	// State is the node's terminal state.
	State string `json:"state"`

	// Reason explains the last obstacle observed, when one was recorded
	// (a pattern mismatch, an empty mailbox, a gating callee node).
	Reason string `json:"reason,omitempty"`
}

// Verdict is the evaluated outcome of a run.
type Verdict struct {
	Status Status `json:"status"`

	// Unmet lists failed requirements, in declaration order, root scope
	// first then call scopes depth-first.
	Unmet []Unmet `json:"unmet,omitempty"`

	// Fired counts completed nodes across all scopes.
	Fired int `json:"fired"`

	// Steps is the simulated clock position at the end of the run.
	Steps int64 `json:"steps"`

	// Failure carries the fatal error text when Status is StatusError.
	Failure string `json:"failure,omitempty"`
}

// evaluate walks the run tree and checks every node's requirement against
// its terminal state.
func (s *Scheduler) evaluate(root *runState) *Verdict {
	v := &Verdict{Status: StatusPass, Steps: s.clock.Current()}
	evaluateScope(root, v)
	if len(v.Unmet) > 0 {
		v.Status = StatusFail
	}
	return v
}

func evaluateScope(rs *runState, v *Verdict) {
	v.Fired += rs.fired

	for _, node := range rs.graph.Nodes() {
		complete := rs.states[node.ID] == stateComplete

		switch node.Require {
		case RequireComplete:
			if !complete {
				v.Unmet = append(v.Unmet, Unmet{
					Scope:   rs.scope,
					Node:    node.Name,
					Require: node.Require.String(),
					State:   rs.states[node.ID].String(),
					Reason:  rs.mismatch[node.ID],
				})
			}
		case RequireIncomplete:
			if complete {
				v.Unmet = append(v.Unmet, Unmet{
					Scope:   rs.scope,
					Node:    node.Name,
					Require: node.Require.String(),
					State:   rs.states[node.ID].String(),
				})
			}
		}

		// Call scopes contribute their own requirements. A callee that
		// never started is judged as-if empty: all of its complete
		// requirements are unmet.
		if op, ok := node.Op.(*CallOp); ok {
			if sub, started := rs.subs[node.ID]; started {
				evaluateScope(sub, v)
			} else {
				scope := node.Name
				if rs.scope != "" {
					scope = rs.scope + "/" + node.Name
				}
				evaluateUnstarted(op.Graph, scope, v)
			}
		}
	}
}

// evaluateUnstarted reports the complete-requirements of a callee graph
// whose call never fired.
func evaluateUnstarted(g *Graph, scope string, v *Verdict) {
	for _, node := range g.Nodes() {
		if node.Require == RequireComplete {
			v.Unmet = append(v.Unmet, Unmet{
				Scope:   scope,
				Node:    node.Name,
				Require: node.Require.String(),
				State:   "pending",
				Reason:  "call never started",
			})
		}
		if op, ok := node.Op.(*CallOp); ok {
			evaluateUnstarted(op.Graph, fmt.Sprintf("%s/%s", scope, node.Name), v)
		}
	}
}
