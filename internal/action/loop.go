package action

import (
	"context"
	"fmt"

	"github.com/vesoft-chaos/orchestrator/internal/expr"
)

// NewLoop builds an action implementing the loop-action contract
// re-executing an embedded sub-DAG while conditionText
// evaluates true against ctx, resetting every embedded action between
// iterations and scheduling the sub-DAG on a private worker pool scoped to
// this loop — outer-plan concurrency never bounds inner-loop concurrency.
func NewLoop(ctx *expr.Context, conditionText string, subActions []*Action, concurrency int) *Action {
	return New("Loop", func(runCtx context.Context) (ResultCode, error) {
		cond, err := expr.Parse(conditionText)
		if err != nil {
			return ErrFailed, fmt.Errorf("parse loop condition %q: %w", conditionText, err)
		}

		roots, leaves := rootsAndLeaves(subActions)
		begin := New("Begin", func(context.Context) (ResultCode, error) { return OK, nil })
		end := New("End", func(context.Context) (ResultCode, error) { return OK, nil })
		for _, r := range roots {
			begin.AddDependency(r)
		}
		for _, l := range leaves {
			l.AddDependency(end)
		}
		all := append(append([]*Action{}, subActions...), begin, end)

		loopTimes := 0
		for {
			v, err := cond.Eval(ctx)
			if err != nil {
				return ErrFailed, fmt.Errorf("eval loop condition %q: %w", conditionText, err)
			}
			if !v.AsBool() {
				return OK, nil
			}
			loopTimes++

			for _, a := range all {
				a.Reset()
			}
			RunDAG(runCtx, all, concurrency, nil)

			if end.Status() == StatusFailed {
				return ErrFailed, fmt.Errorf("loop iteration %d failed", loopTimes)
			}
		}
	})
}

// rootsAndLeaves partitions actions by connectivity: roots have no
// dependees, leaves have no dependers.
func rootsAndLeaves(actions []*Action) (roots, leaves []*Action) {
	for _, a := range actions {
		if len(a.Dependees()) == 0 {
			roots = append(roots, a)
		}
		if len(a.Dependers()) == 0 {
			leaves = append(leaves, a)
		}
	}
	return roots, leaves
}
