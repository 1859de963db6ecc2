package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessen-io/stagehand/internal/engine"
)

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	var searchPath []string

	cmd := &cobra.Command{
		Use:   "graph <scenario.yaml>",
		Short: "Render the execution graph as Graphviz DOT",
		Long: `Render a scenario's execution graph as Graphviz DOT on stdout.

Call subgraphs render as clusters. Pipe the output to dot:

  stagehand graph checkout.yaml | dot -Tsvg -o checkout.svg`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, args[0], searchPath)
		},
	}

	cmd.Flags().StringArrayVar(&searchPath, "search-path", nil, "additional directories searched for subroutine files (repeatable)")

	return cmd
}

func runGraph(cmd *cobra.Command, path string, searchPath []string) error {
	unit, graph, _, err := loadScenario(path, searchPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	writeDOT(cmd.OutOrStdout(), unit.Doc.Name, graph)
	return nil
}

// writeDOT renders the graph in Graphviz DOT syntax. Node ids are prefixed
// per scope so names may repeat across call boundaries.
func writeDOT(w io.Writer, name string, g *engine.Graph) {
	fmt.Fprintf(w, "digraph %s {\n", dotID(name))
	fmt.Fprintln(w, "  rankdir=TB;")
	fmt.Fprintln(w, "  node [shape=box, fontname=\"monospace\"];")
	writeDOTScope(w, g, "n", "  ")
	fmt.Fprintln(w, "}")
}

func writeDOTScope(w io.Writer, g *engine.Graph, prefix, indent string) {
	for _, node := range g.Nodes() {
		id := fmt.Sprintf("%s%d", prefix, node.ID)

		if op, ok := node.Op.(*engine.CallOp); ok {
			sub := prefix + fmt.Sprintf("%d_", node.ID)
			fmt.Fprintf(w, "%ssubgraph cluster_%s {\n", indent, id)
			fmt.Fprintf(w, "%s  label=%q;\n", indent, node.Name+" : "+op.Callee)
			writeDOTScope(w, op.Graph, sub, indent+"  ")
			fmt.Fprintf(w, "%s}\n", indent)
			// Anchor node for edges in and out of the cluster.
			fmt.Fprintf(w, "%s%s [label=%q, shape=oval];\n", indent, id, node.Name)
			continue
		}

		label := fmt.Sprintf("%s\\n[%s]", node.Name, opKind(node.Op))
		attrs := fmt.Sprintf("label=\"%s\"", label)
		switch node.Require {
		case engine.RequireComplete:
			attrs += ", penwidth=2"
		case engine.RequireIncomplete:
			attrs += ", style=dashed"
		}
		fmt.Fprintf(w, "%s%s [%s];\n", indent, id, attrs)
	}

	for _, node := range g.Nodes() {
		for _, next := range g.Succ(node.ID) {
			fmt.Fprintf(w, "%s%s%d -> %s%d;\n", indent, prefix, node.ID, prefix, next)
		}
	}
}

func opKind(op engine.Op) string {
	switch op.(type) {
	case *engine.BindOp:
		return "bind"
	case *engine.SendOp:
		return "send"
	case *engine.RecvOp:
		return "recv"
	case *engine.RespondOp:
		return "respond"
	case *engine.DelayOp:
		return "delay"
	case *engine.CallOp:
		return "call"
	default:
		return "?"
	}
}

// dotID sanitizes a scenario name into a DOT identifier.
func dotID(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == '-' || r == ' ' || r == '.' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "scenario"
	}
	return b.String()
}
