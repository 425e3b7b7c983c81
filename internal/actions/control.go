package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/vesoft-chaos/orchestrator/internal/action"
	"github.com/vesoft-chaos/orchestrator/internal/expr"
)

// Empty is a no-op action, useful as a join/fan-in point in a DAG or as a
// stand-in while a plan is under construction. Grounded on EmptyAction.
func Empty(name string) *action.Action {
	return action.New(name, func(context.Context) (action.ResultCode, error) { return action.OK, nil })
}

// Task is the caller-supplied body a RunTask action executes.
type Task func(ctx context.Context) (action.ResultCode, error)

// RunTask wraps an arbitrary caller-supplied closure as an action, letting
// Go code that builds a plan programmatically inject custom steps without
// writing a dedicated action type. Grounded on RunTaskAction.
func RunTask(name string, task Task) *action.Action {
	return action.New(name, func(ctx context.Context) (action.ResultCode, error) {
		if task == nil {
			return action.ErrBadArgument, fmt.Errorf("RunTask %q has no task body", name)
		}
		return task(ctx)
	})
}

// Wait sleeps for d and succeeds, failing only if ctx is cancelled first;
// used to pace a plan between disruptive steps. Grounded on WaitAction.
func Wait(d time.Duration) *action.Action {
	return action.New(fmt.Sprintf("wait %s", d), func(ctx context.Context) (action.ResultCode, error) {
		if err := sleepCtx(ctx, d); err != nil {
			return action.ErrFailed, err
		}
		return action.OK, nil
	})
}

// Assign evaluates exprText against ctx and stores the result under
// varName, letting later expressions (loop conditions, other assigns)
// observe it. Grounded on AssignAction.
func Assign(ctx *expr.Context, varName, exprText string) *action.Action {
	return action.New(fmt.Sprintf("$%s=%s", varName, exprText), func(context.Context) (action.ResultCode, error) {
		node, err := expr.Parse(exprText)
		if err != nil {
			return action.ErrBadArgument, err
		}
		val, err := node.Eval(ctx)
		if err != nil {
			return action.ErrFailed, err
		}
		ctx.Set(varName, val)
		return action.OK, nil
	})
}

// ExecutionExpression evaluates conditionText against ctx and succeeds only
// if it evaluates truthy, letting a plan assert an invariant between chaos
// steps and fail the plan if it doesn't hold. Grounded on
// ExecutionExpressionAction::doRun.
func ExecutionExpression(ctx *expr.Context, conditionText string) *action.Action {
	return action.New(fmt.Sprintf("Execution expression %s", conditionText), func(context.Context) (action.ResultCode, error) {
		node, err := expr.Parse(conditionText)
		if err != nil {
			return action.ErrBadArgument, err
		}
		val, err := node.Eval(ctx)
		if err != nil {
			return action.ErrFailed, err
		}
		if !val.AsBool() {
			return action.ErrFailed, fmt.Errorf("expression %q evaluated false", conditionText)
		}
		return action.OK, nil
	})
}
