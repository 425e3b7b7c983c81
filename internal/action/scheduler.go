package action

import (
	"context"
	"sync"
)

// RunDAG launches one task per action in actions, bounded by a worker pool
// of size concurrency: each task first awaits every dependee's completion
// signal — without holding a pool slot, so waiting tasks never starve the
// actions they're waiting on — then acquires a slot only around actually
// running the action (or marks it failed if any dependee failed). It
// returns once every task has finished
// (not merely started) — callers that only need to block until a specific
// sink action completes should instead wait on that action's Signal and let
// RunDAG's goroutines finish in the background.
//
// This is the one scheduling algorithm both the top-level plan and every
// loop action's private pool use, so a loop body waits on its
// dependees exactly the way the outer plan does.
// onDone, if non-nil, is invoked once per action immediately after it
// reaches a terminal status (SUCCEEDED or FAILED) — used by the plan to
// latch its overall status the first time any real action fails.
func RunDAG(ctx context.Context, actions []*Action, concurrency int, onDone func(*Action)) {
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, a := range actions {
		wg.Add(1)
		go func(a *Action) {
			defer wg.Done()

			if failed, reason := awaitDependees(ctx, a); failed {
				a.MarkFailed(reason)
			} else {
				sem <- struct{}{}
				a.Run(ctx)
				<-sem
			}
			if onDone != nil {
				onDone(a)
			}
		}(a)
	}
	wg.Wait()
}

// awaitDependees waits on every dependee's signal. Suspension here must
// not block an OS thread outright — each wait is a
// channel select, so the goroutine yields to the runtime rather than
// spinning.
func awaitDependees(ctx context.Context, a *Action) (failed bool, reason string) {
	for _, dep := range a.Dependees() {
		if err := dep.Signal().Wait(ctx); err != nil {
			return true, err.Error()
		}
	}
	return false, ""
}
