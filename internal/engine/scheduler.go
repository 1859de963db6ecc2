package engine

import (
	"context"
	"fmt"
	"log/slog"
)

// nodeState tracks a node's lifecycle. Nodes start pending, become ready
// once every predecessor has completed, and complete when their operation
// fires. A ready node whose operation cannot fire yet (mismatch, empty
// mailbox, remaining delay) simply stays ready.
type nodeState int

const (
	statePending nodeState = iota
	stateReady
	stateComplete
)

func (s nodeState) String() string {
	switch s {
	case stateReady:
		return "ready"
	case stateComplete:
		return "complete"
	default:
		return "pending"
	}
}

// TraceEntry describes one firing, in execution order.
type TraceEntry struct {
	Step   int64  // simulated clock step at firing time
	Scope  string // call path, "" for the root scope
	Node   string
	Kind   string // bind, send, recv, respond, delay, call
	Detail string // canonical payload or a short note
}

// TraceSink receives firings as they happen. Implementations must not
// block; the scheduler calls them inline.
type TraceSink interface {
	Record(entry TraceEntry)
}

// Scheduler executes a scenario graph to quiescence.
//
// Each scheduling round polls the transport for inbound messages, then
// fires at most one node. Candidates are tried strictly by priority class:
// binds and calls first, then sends and responds, then recvs; simulated
// time ticks only when no message work can proceed. Within a class, nodes
// are tried in declaration order. The run ends when a full round moves
// nothing and delivers nothing.
type Scheduler struct {
	graph     *Graph
	transport Transport
	fabric    *Fabric
	clock     *Clock
	corr      CorrelationGenerator
	sink      TraceSink
	logger    *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithCorrelation sets the correlation id generator (default UUIDv7).
func WithCorrelation(gen CorrelationGenerator) Option {
	return func(s *Scheduler) { s.corr = gen }
}

// WithTraceSink registers a firing trace sink.
func WithTraceSink(sink TraceSink) Option {
	return func(s *Scheduler) { s.sink = sink }
}

// WithLogger sets the structured logger (default slog.Default).
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithClock substitutes the simulated clock.
func WithClock(clock *Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// NewScheduler creates a scheduler for one run of the graph. participants
// names every dummy whose mailbox the run observes, across all call scopes.
func NewScheduler(graph *Graph, transport Transport, participants []string, opts ...Option) *Scheduler {
	s := &Scheduler{
		graph:     graph,
		transport: transport,
		fabric:    NewFabric(participants),
		clock:     NewClock(),
		corr:      UUIDv7Generator{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clock exposes the run's simulated clock.
func (s *Scheduler) Clock() *Clock { return s.clock }

// runState is the mutable execution state of one scope: the root graph or
// one instance of a call's subgraph. The binding environment is owned by
// the scope; mailboxes, clock and transport are shared across scopes.
type runState struct {
	graph     *Graph
	env       *Env
	scope     string
	states    []nodeState
	blocked   []int
	remaining []int64
	requests  map[NodeID]Message
	subs      map[NodeID]*runState
	mismatch  []string
	fired     int
}

func newRunState(g *Graph, scope string) *runState {
	n := g.Len()
	rs := &runState{
		graph:     g,
		env:       NewEnv(),
		scope:     scope,
		states:    make([]nodeState, n),
		blocked:   make([]int, n),
		remaining: make([]int64, n),
		requests:  make(map[NodeID]Message),
		subs:      make(map[NodeID]*runState),
		mismatch:  make([]string, n),
	}
	for _, node := range g.Nodes() {
		rs.blocked[node.ID] = len(g.Preds(node.ID))
		if rs.blocked[node.ID] == 0 {
			rs.states[node.ID] = stateReady
		}
		if d, ok := node.Op.(*DelayOp); ok {
			rs.remaining[node.ID] = d.Steps
		}
	}
	return rs
}

// complete marks a node done and promotes successors whose last
// predecessor just finished.
func (rs *runState) complete(id NodeID) {
	rs.states[id] = stateComplete
	rs.fired++
	for _, next := range rs.graph.Succ(id) {
		rs.blocked[next]--
		if rs.blocked[next] == 0 && rs.states[next] == statePending {
			rs.states[next] = stateReady
		}
	}
}

// Run executes the graph to quiescence and evaluates the verdict.
//
// A fatal error (unbound variable on resolve, transport failure) aborts the
// run immediately; the returned verdict then has StatusError and the error
// is returned alongside it.
func (s *Scheduler) Run(ctx context.Context) (*Verdict, error) {
	root := newRunState(s.graph, "")

	_, err := s.drive(ctx, root)
	s.logger.Debug("run quiesced",
		"fired", root.fired,
		"steps", s.clock.Current(),
		"pending", s.fabric.Pending(),
		"bindings", render(root.env.Snapshot()))
	verdict := s.evaluate(root)
	if err != nil {
		verdict.Status = StatusError
		verdict.Failure = err.Error()
		return verdict, err
	}
	return verdict, nil
}

// drive repeats scheduling rounds until a round neither fires a node nor
// delivers a message. It reports whether any round made progress.
func (s *Scheduler) drive(ctx context.Context, rs *runState) (bool, error) {
	progressed := false
	for {
		if err := ctx.Err(); err != nil {
			return progressed, err
		}

		delivered, err := s.pump(ctx)
		if err != nil {
			return progressed, err
		}

		moved, err := s.round(ctx, rs)
		if err != nil {
			return progressed, err
		}

		if !moved && !delivered {
			return progressed, nil
		}
		progressed = true
	}
}

// pump drains the transport into the fabric's mailboxes. Participants are
// polled in normalized order so delivery interleaving is deterministic.
func (s *Scheduler) pump(ctx context.Context) (bool, error) {
	delivered := false
	for _, p := range s.fabric.Participants() {
		for {
			msg, err := s.transport.Deliver(ctx, p)
			if err != nil {
				return delivered, &RunError{
					Code:    ErrCodeTransport,
					Message: fmt.Sprintf("deliver to %q: %v", p, err),
				}
			}
			if msg == nil {
				break
			}
			if err := s.fabric.Push(*msg); err != nil {
				return delivered, err
			}
			s.logger.Debug("message delivered",
				"to", msg.Target, "from", msg.Sender, "correlation", msg.Correlation)
			delivered = true
		}
	}
	return delivered, nil
}

// round fires at most one node: the first runnable candidate in the lowest
// non-empty priority class, in declaration order. When no message work can
// fire and ready delays exist, the clock ticks instead.
func (s *Scheduler) round(ctx context.Context, rs *runState) (bool, error) {
	// Class 0: binds and calls.
	for _, node := range rs.graph.Nodes() {
		if rs.states[node.ID] != stateReady {
			continue
		}
		switch node.Op.(type) {
		case *BindOp:
			moved, err := s.fireBind(rs, node)
			if err != nil || moved {
				return moved, err
			}
		case *CallOp:
			moved, err := s.fireCall(ctx, rs, node)
			if err != nil || moved {
				return moved, err
			}
		}
	}

	// Class 1: sends and responds.
	for _, node := range rs.graph.Nodes() {
		if rs.states[node.ID] != stateReady {
			continue
		}
		switch node.Op.(type) {
		case *SendOp:
			if err := s.fireSend(ctx, rs, node); err != nil {
				return false, err
			}
			return true, nil
		case *RespondOp:
			if err := s.fireRespond(ctx, rs, node); err != nil {
				return false, err
			}
			return true, nil
		}
	}

	// Class 2: recvs.
	for _, node := range rs.graph.Nodes() {
		if rs.states[node.ID] != stateReady {
			continue
		}
		if _, ok := node.Op.(*RecvOp); !ok {
			continue
		}
		if s.fireRecv(rs, node) {
			return true, nil
		}
	}

	// Only delays left: advance simulated time one step.
	ticked := false
	for _, node := range rs.graph.Nodes() {
		if rs.states[node.ID] != stateReady {
			continue
		}
		if _, ok := node.Op.(*DelayOp); !ok {
			continue
		}
		if !ticked {
			s.clock.Tick()
			ticked = true
		}
		rs.remaining[node.ID]--
		if rs.remaining[node.ID] <= 0 {
			rs.complete(node.ID)
			s.trace(rs, node, "delay", "elapsed")
		}
	}
	return ticked, nil
}

func (s *Scheduler) fireBind(rs *runState, node Node) (bool, error) {
	op := node.Op.(*BindOp)

	resolved, err := Resolve(op.Src, rs.env, node.Name)
	if err != nil {
		return false, err
	}

	ok, reason := MatchInto(op.Dst, resolved, rs.env)
	if !ok {
		rs.mismatch[node.ID] = reason
		return false, nil
	}

	rs.complete(node.ID)
	s.trace(rs, node, "bind", render(resolved))
	return true, nil
}

func (s *Scheduler) fireSend(ctx context.Context, rs *runState, node Node) error {
	op := node.Op.(*SendOp)

	payload, err := Resolve(op.Src, rs.env, node.Name)
	if err != nil {
		return err
	}

	msg := Message{
		Sender:      op.From,
		Target:      op.To,
		Correlation: s.corr.Generate(),
		Payload:     payload,
	}
	if err := s.transport.Dispatch(ctx, msg); err != nil {
		return &RunError{
			Code:    ErrCodeTransport,
			Message: fmt.Sprintf("dispatch to %q: %v", op.To, err),
			Node:    node.Name,
		}
	}

	rs.complete(node.ID)
	s.trace(rs, node, "send", render(payload))
	s.logger.Debug("message sent",
		"node", node.Name, "from", op.From, "to", op.To, "correlation", msg.Correlation)
	return nil
}

func (s *Scheduler) fireRespond(ctx context.Context, rs *runState, node Node) error {
	op := node.Op.(*RespondOp)

	request, ok := rs.requests[op.Request]
	if !ok {
		return NewMissingRequestError(node.Name, rs.graph.Node(op.Request).Name)
	}

	payload, err := Resolve(op.Src, rs.env, node.Name)
	if err != nil {
		return err
	}

	reply := Message{
		Sender:      request.Target,
		Target:      request.Sender,
		Correlation: request.Correlation,
		Payload:     payload,
	}
	if err := s.transport.Dispatch(ctx, reply); err != nil {
		return &RunError{
			Code:    ErrCodeTransport,
			Message: fmt.Sprintf("dispatch reply to %q: %v", reply.Target, err),
			Node:    node.Name,
		}
	}

	rs.complete(node.ID)
	s.trace(rs, node, "respond", render(payload))
	s.logger.Debug("request answered",
		"node", node.Name, "to", reply.Target, "correlation", reply.Correlation)
	return nil
}

// fireRecv attempts to consume the mailbox head. A mismatching or missing
// head leaves the node ready and the mailbox untouched.
func (s *Scheduler) fireRecv(rs *runState, node Node) bool {
	op := node.Op.(*RecvOp)

	head, ok := s.fabric.Peek(op.At)
	if !ok {
		rs.mismatch[node.ID] = fmt.Sprintf("mailbox %q is empty", op.At)
		return false
	}
	if op.From != "" && head.Sender != op.From {
		rs.mismatch[node.ID] = fmt.Sprintf("head is from %q, expected %q", head.Sender, op.From)
		return false
	}

	ok, reason := MatchInto(op.Dst, head.Payload, rs.env)
	if !ok {
		rs.mismatch[node.ID] = reason
		return false
	}

	s.fabric.Consume(op.At)
	rs.requests[node.ID] = head
	rs.complete(node.ID)
	s.trace(rs, node, "recv", render(head.Payload))
	return true
}

// fireCall advances a call node. The callee scope is created on first
// attempt (with in-wires applied), then driven to quiescence. The call
// completes once every callee requirement marked complete has been met and
// the out-wires have been applied to the caller scope.
func (s *Scheduler) fireCall(ctx context.Context, rs *runState, node Node) (bool, error) {
	op := node.Op.(*CallOp)

	sub, started := rs.subs[node.ID]
	if !started {
		scope := node.Name
		if rs.scope != "" {
			scope = rs.scope + "/" + node.Name
		}
		sub = newRunState(op.Graph, scope)

		for i, wire := range op.In {
			v, err := Resolve(wire.Src, rs.env, node.Name)
			if err != nil {
				return false, err
			}
			if ok, reason := MatchInto(wire.Dst, v, sub.env); !ok {
				rs.mismatch[node.ID] = fmt.Sprintf("in[%d]: %s", i, reason)
				return false, nil
			}
		}
		rs.subs[node.ID] = sub
	}

	progressed, err := s.drive(ctx, sub)
	if err != nil {
		return false, err
	}

	if unmet := requiredIncomplete(sub); unmet != "" {
		rs.mismatch[node.ID] = fmt.Sprintf("callee %q has not completed %q", op.Callee, unmet)
		return progressed, nil
	}

	for i, wire := range op.Out {
		v, err := Resolve(wire.Src, sub.env, node.Name)
		if err != nil {
			return false, err
		}
		if ok, reason := MatchInto(wire.Dst, v, rs.env); !ok {
			rs.mismatch[node.ID] = fmt.Sprintf("out[%d]: %s", i, reason)
			return progressed, nil
		}
	}

	rs.complete(node.ID)
	s.trace(rs, node, "call", op.Callee)
	return true, nil
}

// requiredIncomplete returns the name of a callee node still gating the
// call's completion, or "" when the callee has met its obligations.
func requiredIncomplete(rs *runState) string {
	for _, node := range rs.graph.Nodes() {
		if node.Require == RequireComplete && rs.states[node.ID] != stateComplete {
			return node.Name
		}
	}
	return ""
}

func (s *Scheduler) trace(rs *runState, node Node, kind, detail string) {
	if s.sink == nil {
		return
	}
	s.sink.Record(TraceEntry{
		Step:   s.clock.Current(),
		Scope:  rs.scope,
		Node:   node.Name,
		Kind:   kind,
		Detail: detail,
	})
}
