// Package report renders a finished plan run for a human: a colorized
// terminal summary built on plan.Plan's own textual report, and a Graphviz
// DOT export of the action DAG for visualization.
package report

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/vesoft-chaos/orchestrator/internal/action"
	"github.com/vesoft-chaos/orchestrator/internal/plan"
)

var (
	succeededColor = color.New(color.FgGreen, color.Bold)
	failedColor    = color.New(color.FgRed, color.Bold)
	runningColor   = color.New(color.FgYellow)
)

// Colorize re-renders p.Report(), tinting each per-action status word so a
// terminal reader can spot failures at a glance. The DAG is walked directly
// rather than re-parsing the plain-text report, so row content always
// matches plan.Plan.Report()'s own field order.
func Colorize(p *plan.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan %q: %s\n", p.Name, colorStatus(p.Status()))

	for _, a := range p.Actions() {
		if len(a.Dependees()) == 0 || len(a.Dependers()) == 0 {
			continue
		}
		fmt.Fprintf(&b, "  #%-3d %-30s %s %6dms\n", a.ID(), a.Label(), colorStatus(a.Status()), a.Duration().Milliseconds())
	}
	return b.String()
}

func colorStatus(status action.Status) string {
	text := status.String()
	switch status {
	case action.StatusSucceeded:
		return succeededColor.Sprint(text)
	case action.StatusFailed:
		return failedColor.Sprint(text)
	default:
		return runningColor.Sprint(text)
	}
}
