package plan

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesoft-chaos/orchestrator/internal/action"
)

func TestLinearDAGPropagationThroughPlan(t *testing.T) {
	p := New("t", 10, "", nil)
	a := action.New("A", func(context.Context) (action.ResultCode, error) { return action.ErrFailed, nil })
	b := action.New("B", func(context.Context) (action.ResultCode, error) { return action.OK, nil })
	c := action.New("C", func(context.Context) (action.ResultCode, error) { return action.OK, nil })
	a.AddDependency(b)
	b.AddDependency(c)
	p.Add(a)
	p.Add(b)
	p.Add(c)

	err := p.Schedule(context.Background())
	require.NoError(t, err) // Schedule returns only a ctx error, not the plan status
	assert.Equal(t, action.StatusFailed, p.Status())
	assert.Equal(t, action.StatusFailed, a.Status())
	assert.Equal(t, action.StatusFailed, b.Status())
	assert.Equal(t, action.StatusFailed, c.Status())
}

func TestDiamondSuccess(t *testing.T) {
	p := New("t", 10, "", nil)
	var ranB, ranC int32
	a := action.New("A", func(context.Context) (action.ResultCode, error) { return action.OK, nil })
	b := action.New("B", func(context.Context) (action.ResultCode, error) {
		atomic.AddInt32(&ranB, 1)
		return action.OK, nil
	})
	c := action.New("C", func(context.Context) (action.ResultCode, error) {
		atomic.AddInt32(&ranC, 1)
		return action.OK, nil
	})
	d := action.New("D", func(context.Context) (action.ResultCode, error) { return action.OK, nil })
	a.AddDependency(b)
	a.AddDependency(c)
	b.AddDependency(d)
	c.AddDependency(d)
	p.Add(a)
	p.Add(b)
	p.Add(c)
	p.Add(d)

	err := p.Schedule(context.Background())
	require.NoError(t, err)
	assert.Equal(t, action.StatusSucceeded, p.Status())
	assert.Equal(t, int32(1), atomic.LoadInt32(&ranB))
	assert.Equal(t, int32(1), atomic.LoadInt32(&ranC))
}

func TestReportOmitsSourceAndSink(t *testing.T) {
	p := New("t", 10, "", nil)
	a := action.New("only", func(context.Context) (action.ResultCode, error) { return action.OK, nil })
	p.Add(a)
	require.NoError(t, p.Schedule(context.Background()))

	report := p.Report()
	assert.Contains(t, report, "only")
	assert.NotContains(t, report, "Source")
	assert.NotContains(t, report, "Sink")
}

func TestBoundedConcurrency(t *testing.T) {
	p := New("t", 2, "", nil)
	var running, maxRunning int32
	slow := func(context.Context) (action.ResultCode, error) {
		n := atomic.AddInt32(&running, 1)
		defer atomic.AddInt32(&running, -1)
		for {
			old := atomic.LoadInt32(&maxRunning)
			if n <= old || atomic.CompareAndSwapInt32(&maxRunning, old, n) {
				break
			}
		}
		return action.OK, nil
	}
	for i := 0; i < 6; i++ {
		p.Add(action.New("a", slow))
	}
	require.NoError(t, p.Schedule(context.Background()))
	assert.LessOrEqual(t, atomic.LoadInt32(&maxRunning), int32(2))
}

type fakeNotifier struct {
	calls int32
	fail  bool
}

func (f *fakeNotifier) Send(ctx context.Context, to, subject, body string) error {
	atomic.AddInt32(&f.calls, 1)
	if f.fail {
		return errors.New("delivery failed")
	}
	return nil
}

func TestSinkFailureDoesNotFlipPlanStatus(t *testing.T) {
	n := &fakeNotifier{fail: true}
	p := New("t", 10, "ops@example.com", n)
	p.Add(action.New("a", func(context.Context) (action.ResultCode, error) { return action.OK, nil }))

	_ = p.Schedule(context.Background())
	assert.Equal(t, action.StatusSucceeded, p.Status())
	assert.GreaterOrEqual(t, atomic.LoadInt32(&n.calls), int32(1))
}

func TestReportContainsStatusLine(t *testing.T) {
	p := New("my-plan", 10, "", nil)
	p.Add(action.New("a", func(context.Context) (action.ResultCode, error) { return action.OK, nil }))
	require.NoError(t, p.Schedule(context.Background()))
	assert.True(t, strings.HasPrefix(p.Report(), `Plan "my-plan"`))
}
