package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/tessen-io/stagehand/internal/value"
)

// Message is the unit of exchange between scenario dummies and the system
// under test. Correlation carries the request id a respond must echo.
type Message struct {
	// Sender is the symbolic name of the originating participant.
	Sender string

	// Target is the symbolic name of the destination participant.
	Target string

	// Correlation identifies the request this message belongs to.
	// Empty for fire-and-forget messages.
	Correlation string

	// Payload is the message body.
	Payload value.Value
}

// Transport moves messages between the scenario and the system under test.
// Dispatch hands an outbound message (from a dummy) to the system; Deliver
// polls for the next inbound message addressed to a participant, returning
// nil when none is pending. Deliver never blocks: quiescence detection
// depends on an empty transport reporting empty immediately.
type Transport interface {
	Dispatch(ctx context.Context, msg Message) error
	Deliver(ctx context.Context, participant string) (*Message, error)
}

// Fabric owns the per-participant FIFO mailboxes for the scenario's
// dummies. Inbound messages (system under test to dummy) are appended by
// the scheduler's transport pump; recv nodes inspect and consume the head.
//
// A mailbox head that fails to match is left in place: messages are
// consumed strictly in arrival order or not at all.
type Fabric struct {
	mailboxes map[string][]Message
	order     []string
}

// NewFabric creates mailboxes for the given participants. Participant order
// is normalized so iteration is deterministic.
func NewFabric(participants []string) *Fabric {
	order := slices.Clone(participants)
	slices.Sort(order)
	order = slices.Compact(order)

	boxes := make(map[string][]Message, len(order))
	for _, p := range order {
		boxes[p] = nil
	}
	return &Fabric{mailboxes: boxes, order: order}
}

// Participants returns the mailbox owners in normalized order.
func (f *Fabric) Participants() []string {
	return f.order
}

// Push appends a message to the target's mailbox.
func (f *Fabric) Push(msg Message) error {
	if _, ok := f.mailboxes[msg.Target]; !ok {
		return &RunError{
			Code:    ErrCodeUnknownParticipant,
			Message: fmt.Sprintf("no mailbox for participant %q", msg.Target),
		}
	}
	f.mailboxes[msg.Target] = append(f.mailboxes[msg.Target], msg)
	return nil
}

// Peek returns the head of the participant's mailbox without consuming it.
func (f *Fabric) Peek(participant string) (Message, bool) {
	box := f.mailboxes[participant]
	if len(box) == 0 {
		return Message{}, false
	}
	return box[0], true
}

// Consume removes the head of the participant's mailbox.
func (f *Fabric) Consume(participant string) {
	box := f.mailboxes[participant]
	if len(box) > 0 {
		f.mailboxes[participant] = box[1:]
	}
}

// Pending returns the number of undelivered messages across all mailboxes.
func (f *Fabric) Pending() int {
	n := 0
	for _, box := range f.mailboxes {
		n += len(box)
	}
	return n
}
