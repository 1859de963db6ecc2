package engine

import (
	"errors"
	"fmt"
)

// RunError represents an error detected while executing a scenario.
//
// Fatal run errors include:
//   - Unbound variable: a resolve referenced a variable with no binding
//   - Missing request: a respond fired with no retained request envelope
//   - Unknown participant: a message addressed a mailbox that does not exist
//
// Benign conditions (pattern mismatch, empty mailbox) are NOT errors: they
// leave the node ready and the run continues. RunError is reserved for
// conditions that invalidate the rest of the run.
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// Node names the graph node that was executing.
	Node string

	// Variable identifies the offending variable (for unbound errors).
	Variable string
}

// RunErrorCode categorizes run errors.
type RunErrorCode string

const (
	// ErrCodeUnboundVariable indicates a resolve referenced an unbound variable.
	ErrCodeUnboundVariable RunErrorCode = "UNBOUND_VARIABLE"

	// ErrCodeMissingRequest indicates a respond had no retained request to answer.
	ErrCodeMissingRequest RunErrorCode = "MISSING_REQUEST"

	// ErrCodeUnknownParticipant indicates a message addressed an unknown mailbox.
	ErrCodeUnknownParticipant RunErrorCode = "UNKNOWN_PARTICIPANT"

	// ErrCodeTransport indicates the transport failed to accept or deliver a message.
	ErrCodeTransport RunErrorCode = "TRANSPORT"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Node != "" && e.Variable != "" {
		return fmt.Sprintf("%s: %s (node=%s, variable=%s)", e.Code, e.Message, e.Node, e.Variable)
	}
	if e.Node != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.Node)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnboundVariable returns true if the error is an unbound-variable error.
// Uses errors.As to handle wrapped errors.
func IsUnboundVariable(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeUnboundVariable
	}
	return false
}

// NewUnboundVariableError creates a RunError for a resolve of an unbound variable.
func NewUnboundVariableError(node, variable string) *RunError {
	return &RunError{
		Code:     ErrCodeUnboundVariable,
		Message:  "variable is not bound in this scope",
		Node:     node,
		Variable: variable,
	}
}

// NewMissingRequestError creates a RunError for a respond without a request.
func NewMissingRequestError(node, recvNode string) *RunError {
	return &RunError{
		Code:    ErrCodeMissingRequest,
		Message: fmt.Sprintf("no request envelope retained by recv %q", recvNode),
		Node:    node,
	}
}

// BuildError represents a structural defect found while assembling a graph.
//
// Build errors are reported before any node executes: a malformed graph is
// rejected as a whole.
type BuildError struct {
	// Code identifies the defect category.
	Code BuildErrorCode

	// Message is a human-readable description.
	Message string

	// Node names the offending node, when one is identifiable.
	Node string
}

// BuildErrorCode categorizes graph construction errors.
type BuildErrorCode string

const (
	// ErrCodeDuplicateNode indicates two nodes share a name.
	ErrCodeDuplicateNode BuildErrorCode = "DUPLICATE_NODE"

	// ErrCodeUnknownNode indicates an edge or respond referenced a missing node.
	ErrCodeUnknownNode BuildErrorCode = "UNKNOWN_NODE"

	// ErrCodeCycle indicates the dependency edges form a cycle.
	ErrCodeCycle BuildErrorCode = "DEPENDENCY_CYCLE"

	// ErrCodeBadRespondTarget indicates a respond targets a node that is not a recv.
	ErrCodeBadRespondTarget BuildErrorCode = "BAD_RESPOND_TARGET"

	// ErrCodeBadNode indicates a node's operation is internally invalid.
	ErrCodeBadNode BuildErrorCode = "BAD_NODE"
)

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.Node)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsBuildError returns true if the error is a graph construction error.
func IsBuildError(err error) bool {
	var be *BuildError
	return errors.As(err, &be)
}
