// Package transport provides the message bridges between a scenario run
// and the system under test. The loopback transport hosts scripted actor
// handlers in-process: deterministic, synchronous, and suitable for
// harness runs and CLI demos.
package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/tessen-io/stagehand/internal/engine"
)

// Handler scripts one actor of the system under test. It receives a
// dispatched message and returns any messages the actor emits in response;
// those are queued for delivery to their targets on the next poll.
type Handler func(msg engine.Message) []engine.Message

// Loopback is an in-process Transport. Dispatched messages are routed to
// the registered handler of their target actor; handler output destined
// for scenario dummies is buffered until Deliver polls for it.
//
// Messages dispatched to a target with no handler are accepted and
// dropped, mirroring a system that silently ignores unknown traffic. Use
// Strict to make that an error instead.
type Loopback struct {
	mu       sync.Mutex
	handlers map[string]Handler
	pending  map[string][]engine.Message

	// Strict makes Dispatch fail when the target has no handler.
	Strict bool
}

// NewLoopback creates an empty loopback transport.
func NewLoopback() *Loopback {
	return &Loopback{
		handlers: make(map[string]Handler),
		pending:  make(map[string][]engine.Message),
	}
}

// Handle registers the handler scripting an actor.
func (l *Loopback) Handle(actor string, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[actor] = h
}

// Inject queues a message for delivery without a triggering dispatch,
// modelling unsolicited traffic from the system under test.
func (l *Loopback) Inject(msgs ...engine.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range msgs {
		l.pending[m.Target] = append(l.pending[m.Target], m)
	}
}

// Dispatch implements engine.Transport. The target's handler runs inline;
// its emissions are queued for their respective targets.
//
// A message with an empty target is routed: with exactly one registered
// handler it goes there, otherwise the destination is ambiguous and the
// message is dropped (or rejected under Strict).
func (l *Loopback) Dispatch(_ context.Context, msg engine.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if msg.Target == "" {
		actor, ok := l.route()
		if !ok {
			if l.Strict {
				return fmt.Errorf("cannot route message from %q: need exactly one registered actor, have %d", msg.Sender, len(l.handlers))
			}
			return nil
		}
		msg.Target = actor
	}

	h, ok := l.handlers[msg.Target]
	if !ok {
		if l.Strict {
			return fmt.Errorf("no handler registered for actor %q", msg.Target)
		}
		return nil
	}

	for _, out := range h(msg) {
		l.pending[out.Target] = append(l.pending[out.Target], out)
	}
	return nil
}

// route picks the destination for a message dispatched without a target.
func (l *Loopback) route() (string, bool) {
	if len(l.handlers) != 1 {
		return "", false
	}
	for actor := range l.handlers {
		return actor, true
	}
	return "", false
}

// Deliver implements engine.Transport: it pops the next buffered message
// for the participant, or returns nil when none is pending.
func (l *Loopback) Deliver(_ context.Context, participant string) (*engine.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	box := l.pending[participant]
	if len(box) == 0 {
		return nil, nil
	}
	head := box[0]
	l.pending[participant] = box[1:]
	return &head, nil
}

// Echo returns a handler that answers every request with the given payload
// factory, echoing the request's correlation id back to its sender.
func Echo(reply func(req engine.Message) engine.Message) Handler {
	return func(req engine.Message) []engine.Message {
		out := reply(req)
		out.Sender = req.Target
		out.Target = req.Sender
		out.Correlation = req.Correlation
		return []engine.Message{out}
	}
}
