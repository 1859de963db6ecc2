package engine

import (
	"fmt"

	"github.com/tessen-io/stagehand/internal/value"
)

// NodeID indexes a node in a Graph's arena. IDs are assigned in declaration
// order, which doubles as scheduling priority within a class.
type NodeID int

// Require states the terminal expectation a node contributes to the verdict.
type Require int

const (
	// RequireNone means the node does not participate in the verdict.
	RequireNone Require = iota

	// RequireComplete means the run fails unless the node completed.
	RequireComplete

	// RequireIncomplete means the run fails if the node completed.
	RequireIncomplete
)

func (r Require) String() string {
	switch r {
	case RequireComplete:
		return "complete"
	case RequireIncomplete:
		return "incomplete"
	default:
		return "none"
	}
}

// Op is the sealed interface over the closed set of node operations.
// Only the types in this package implement it.
type Op interface {
	op() // sealed
}

// BindOp unifies Dst against the resolved value of Src in the current scope.
type BindOp struct {
	Dst value.Pattern
	Src value.Pattern
}

func (*BindOp) op() {}

// SendOp resolves Src and dispatches it from participant From to actor To.
// An empty To leaves destination resolution to the transport's routing.
// Every send is stamped with a fresh correlation id.
type SendOp struct {
	From string
	To   string
	Src  value.Pattern
}

func (*SendOp) op() {}

// RecvOp waits for the head of participant At's mailbox to match Dst.
// If From is non-empty, the head must additionally come from that sender.
// A mismatching head is left in place and retried on a later round.
type RecvOp struct {
	At   string
	From string
	Dst  value.Pattern
}

func (*RecvOp) op() {}

// RespondOp answers the request consumed by the recv node Request: the
// reply goes back to that request's sender, echoing its correlation id.
type RespondOp struct {
	Request NodeID
	Src     value.Pattern
}

func (*RespondOp) op() {}

// DelayOp completes after Steps ticks of the simulated clock.
type DelayOp struct {
	Steps int64
}

func (*DelayOp) op() {}

// Wire copies one resolved value across a call boundary: Src is resolved in
// one scope and unified against Dst in the other.
type Wire struct {
	Src value.Pattern
	Dst value.Pattern
}

// CallOp runs a subgraph in a fresh scope. In wires flow caller to callee
// before the callee starts; Out wires flow callee to caller once every
// callee requirement is satisfied.
type CallOp struct {
	Callee string
	Graph  *Graph
	In     []Wire
	Out    []Wire
}

func (*CallOp) op() {}

// Node is one vertex of the execution graph.
type Node struct {
	ID      NodeID
	Name    string
	Op      Op
	Require Require
}

// Graph is an immutable arena of nodes plus dependency edges. An edge
// u -> v means v cannot start before u completes. Graphs are validated and
// acyclic by construction (Builder.Build).
type Graph struct {
	nodes []Node
	succ  [][]NodeID
	preds [][]NodeID
	names map[string]NodeID
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) Node { return g.nodes[id] }

// Nodes returns all nodes in declaration order.
func (g *Graph) Nodes() []Node { return g.nodes }

// Succ returns the ids of nodes unblocked by id's completion.
func (g *Graph) Succ(id NodeID) []NodeID { return g.succ[id] }

// Preds returns the ids of nodes that must complete before id may start.
func (g *Graph) Preds(id NodeID) []NodeID { return g.preds[id] }

// Lookup returns the id of the named node.
func (g *Graph) Lookup(name string) (NodeID, bool) {
	id, ok := g.names[name]
	return id, ok
}

// Builder assembles a Graph, deferring validation to Build.
type Builder struct {
	nodes []Node
	names map[string]NodeID
	edges [][2]NodeID
}

// NewBuilder creates an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{names: make(map[string]NodeID)}
}

// AddNode appends a node and returns its id. Names must be unique.
func (b *Builder) AddNode(name string, op Op, req Require) (NodeID, error) {
	if name == "" {
		return 0, &BuildError{Code: ErrCodeBadNode, Message: "node name must not be empty"}
	}
	if _, exists := b.names[name]; exists {
		return 0, &BuildError{
			Code:    ErrCodeDuplicateNode,
			Message: "node name declared twice",
			Node:    name,
		}
	}
	id := NodeID(len(b.nodes))
	b.nodes = append(b.nodes, Node{ID: id, Name: name, Op: op, Require: req})
	b.names[name] = id
	return id, nil
}

// AddEdge records a dependency: to starts only after from completes.
func (b *Builder) AddEdge(from, to NodeID) error {
	if int(from) >= len(b.nodes) || int(to) >= len(b.nodes) || from < 0 || to < 0 {
		return &BuildError{Code: ErrCodeUnknownNode, Message: fmt.Sprintf("edge references unknown node id %d -> %d", from, to)}
	}
	b.edges = append(b.edges, [2]NodeID{from, to})
	return nil
}

// AddEdgeByName records a dependency between named nodes.
func (b *Builder) AddEdgeByName(from, to string) error {
	f, ok := b.names[from]
	if !ok {
		return &BuildError{Code: ErrCodeUnknownNode, Message: fmt.Sprintf("unknown node %q in happens-after", from), Node: to}
	}
	t, ok := b.names[to]
	if !ok {
		return &BuildError{Code: ErrCodeUnknownNode, Message: fmt.Sprintf("unknown node %q", to)}
	}
	b.edges = append(b.edges, [2]NodeID{f, t})
	return nil
}

// Lookup returns the id of a node already added.
func (b *Builder) Lookup(name string) (NodeID, bool) {
	id, ok := b.names[name]
	return id, ok
}

// Build validates the structure and freezes the graph:
//   - every respond targets a recv node, and gets an implicit edge from it
//     (a response cannot precede its request)
//   - delay steps are positive
//   - call subgraphs are present
//   - the dependency relation is acyclic
func (b *Builder) Build() (*Graph, error) {
	n := len(b.nodes)
	edges := make([][2]NodeID, 0, len(b.edges)+4)
	edges = append(edges, b.edges...)

	for _, node := range b.nodes {
		switch op := node.Op.(type) {
		case *RespondOp:
			if int(op.Request) < 0 || int(op.Request) >= n {
				return nil, &BuildError{
					Code:    ErrCodeUnknownNode,
					Message: "respond references unknown request node",
					Node:    node.Name,
				}
			}
			req := b.nodes[op.Request]
			if _, ok := req.Op.(*RecvOp); !ok {
				return nil, &BuildError{
					Code:    ErrCodeBadRespondTarget,
					Message: fmt.Sprintf("respond target %q is not a recv", req.Name),
					Node:    node.Name,
				}
			}
			edges = append(edges, [2]NodeID{op.Request, node.ID})
		case *DelayOp:
			if op.Steps < 1 {
				return nil, &BuildError{
					Code:    ErrCodeBadNode,
					Message: fmt.Sprintf("delay must be at least one step, got %d", op.Steps),
					Node:    node.Name,
				}
			}
		case *CallOp:
			if op.Graph == nil {
				return nil, &BuildError{
					Code:    ErrCodeBadNode,
					Message: "call has no subgraph",
					Node:    node.Name,
				}
			}
		}
	}

	succ := make([][]NodeID, n)
	preds := make([][]NodeID, n)
	for _, e := range edges {
		succ[e[0]] = append(succ[e[0]], e[1])
		preds[e[1]] = append(preds[e[1]], e[0])
	}

	if err := checkAcyclic(b.nodes, succ, preds); err != nil {
		return nil, err
	}

	names := make(map[string]NodeID, n)
	for name, id := range b.names {
		names[name] = id
	}

	return &Graph{nodes: b.nodes, succ: succ, preds: preds, names: names}, nil
}

// checkAcyclic runs Kahn's algorithm over the edge lists.
func checkAcyclic(nodes []Node, succ, preds [][]NodeID) error {
	n := len(nodes)
	indeg := make([]int, n)
	for id := range preds {
		indeg[id] = len(preds[id])
	}

	queue := make([]NodeID, 0, n)
	for id := 0; id < n; id++ {
		if indeg[id] == 0 {
			queue = append(queue, NodeID(id))
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range succ[id] {
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != n {
		// Name one node still blocked, for the error message.
		for id := 0; id < n; id++ {
			if indeg[id] > 0 {
				return &BuildError{
					Code:    ErrCodeCycle,
					Message: "happens-after dependencies form a cycle",
					Node:    nodes[id].Name,
				}
			}
		}
	}
	return nil
}
