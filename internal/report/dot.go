package report

import (
	"fmt"
	"strings"

	"github.com/vesoft-chaos/orchestrator/internal/action"
	"github.com/vesoft-chaos/orchestrator/internal/plan"
)

// ToDOT renders a plan's action DAG as Graphviz DOT, one node per action
// (colored by its terminal status) and one edge per dependency.
func ToDOT(p *plan.Plan) string {
	actions := p.Actions()

	var b strings.Builder
	b.WriteString("digraph ChaosPlan {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=\"filled,rounded\"];\n\n")

	for _, a := range actions {
		fmt.Fprintf(&b, "  \"%d\" [label=\"#%d %s\\n%s\", fillcolor=\"%s\"];\n",
			a.ID(), a.ID(), a.Label(), a.Status(), nodeColor(a.Status()))
	}
	b.WriteString("\n")

	for _, a := range actions {
		for _, dep := range a.Dependees() {
			fmt.Fprintf(&b, "  \"%d\" -> \"%d\";\n", dep.ID(), a.ID())
		}
	}

	b.WriteString("}\n")
	return b.String()
}

func nodeColor(status action.Status) string {
	switch status {
	case action.StatusSucceeded:
		return "#b7e1a1"
	case action.StatusFailed:
		return "#f4a1a1"
	case action.StatusRunning:
		return "#f4e1a1"
	default:
		return "#e0e0e0"
	}
}
