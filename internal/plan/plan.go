// Package plan implements the DAG plan & scheduler: owning actions,
// wiring synthetic source/sink nodes, scheduling the DAG on a bounded
// worker pool, latching the overall status, and rendering the textual
// report.
package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vesoft-chaos/orchestrator/internal/action"
)

// Plan is an ordered collection of owned actions executed as one DAG.
type Plan struct {
	Name        string
	Attachment  string
	Email       string
	Concurrency int

	mu       sync.Mutex
	actions  []*action.Action
	status   action.Status
	duration time.Duration

	source, sink *action.Action
	notifier     Notifier
}

// New builds an empty plan. concurrency <= 0 defaults to 10, matching
// the default worker-pool size used when a plan doesn't override it.
func New(name string, concurrency int, email string, notifier Notifier) *Plan {
	if concurrency <= 0 {
		concurrency = 10
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Plan{
		Name:        name,
		Concurrency: concurrency,
		Email:       email,
		status:      action.StatusSucceeded,
		notifier:    notifier,
	}
}

// Add appends a to the plan, assigning it an id equal to its insertion
// index, and returns that id.
func (p *Plan) Add(a *action.Action) int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := int32(len(p.actions))
	a.SetID(id)
	p.actions = append(p.actions, a)
	return id
}

// Actions returns the plan's actions in insertion order (excluding the
// synthetic source/sink, which only exist after Schedule has wired them).
func (p *Plan) Actions() []*action.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*action.Action, len(p.actions))
	copy(out, p.actions)
	return out
}

func rootsAndLeaves(actions []*action.Action) (roots, leaves []*action.Action) {
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

// wireSourceSink partitions the plan's actions by connectivity and appends
// two synthetic nodes: SOURCE (dependee of
// every root) and SINK (depender of every leaf, runs the final report).
func (p *Plan) wireSourceSink() {
	roots, leaves := rootsAndLeaves(p.actions)

	p.source = action.New("Source", func(context.Context) (action.ResultCode, error) {
		return action.OK, nil
	})
	p.sink = action.New("Sink", func(ctx context.Context) (action.ResultCode, error) {
		return p.runSink(ctx)
	})

	for _, r := range roots {
		p.source.AddDependency(r)
	}
	for _, l := range leaves {
		l.AddDependency(p.sink)
	}
}

func (p *Plan) runSink(ctx context.Context) (action.ResultCode, error) {
	report := p.Report()
	if p.Email == "" {
		return action.OK, nil
	}
	subject := fmt.Sprintf("chaos plan %q finished: %s", p.Name, p.Status())
	if err := p.notifier.Send(ctx, p.Email, subject, report); err != nil {
		return action.ErrFailed, err
	}
	return action.OK, nil
}

func (p *Plan) setFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = action.StatusFailed
}

// Status returns the plan's latched overall status: SUCCEEDED unless any
// non-synthetic action has failed. A SINK delivery failure never flips this
// A SINK delivery failure never flips this.
func (p *Plan) Status() action.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Plan) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

// Schedule wires the synthetic nodes, launches every action's wait-then-run
// task on the plan's bounded worker pool, and blocks the caller on SINK's
// completion signal. If SINK's own wait returns an error (its dependency
// wait raised, or ctx was cancelled), SINK's doRun is re-invoked once
// synchronously as a best-effort guarantee the report still runs
// synchronously as a best-effort guarantee the report still runs.
// It returns an error only when ctx was cancelled; a failed action shows in
// Status, not in the returned error.
func (p *Plan) Schedule(ctx context.Context) error {
	p.mu.Lock()
	p.wireSourceSink()
	all := append(append([]*action.Action{}, p.actions...), p.source, p.sink)
	concurrency := p.Concurrency
	p.mu.Unlock()

	start := time.Now()
	onDone := func(a *action.Action) {
		if a == p.source || a == p.sink {
			return
		}
		if a.Status() == action.StatusFailed {
			p.setFailed()
		}
	}

	done := make(chan struct{})
	go func() {
		action.RunDAG(ctx, all, concurrency, onDone)
		close(done)
	}()

	waitErr := p.sink.Signal().Wait(ctx)
	if waitErr != nil && p.sink.Status() != action.StatusSucceeded {
		p.sink.ForceRerun(ctx)
	}
	<-done

	p.mu.Lock()
	p.duration = time.Since(start)
	p.mu.Unlock()
	var depErr *action.DependencyError
	if errors.As(waitErr, &depErr) {
		return nil
	}
	return waitErr
}

// Report renders the textual status report:
// per-action id, label, status and cost in milliseconds. The synthetic
// source/sink are not in the plan's action list and never get a row; an
// action with no dependees or no dependers is skipped too, which once
// Schedule has wired SOURCE and SINK applies to none of them.
func (p *Plan) Report() string {
	p.mu.Lock()
	actions := append([]*action.Action{}, p.actions...)
	status := p.status
	duration := p.duration
	p.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Plan %q: %s (%s)\n", p.Name, status, duration)
	for _, a := range actions {
		if len(a.Dependees()) == 0 || len(a.Dependers()) == 0 {
			continue
		}
		fmt.Fprintf(&b, "  #%-3d %-30s %-10s %6dms\n", a.ID(), a.Label(), a.Status(), a.Duration().Milliseconds())
	}
	return b.String()
}
