package action

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesoft-chaos/orchestrator/internal/expr"
)

func TestStatusMonotonicity(t *testing.T) {
	a := New("a", func(context.Context) (ResultCode, error) { return OK, nil })
	assert.Equal(t, StatusInit, a.Status())
	a.Run(context.Background())
	assert.Equal(t, StatusSucceeded, a.Status())
}

func TestSingleShotSignalLateObserver(t *testing.T) {
	a := New("a", func(context.Context) (ResultCode, error) { return ErrFailed, nil })
	a.Run(context.Background())

	err1 := a.Signal().Wait(context.Background())
	err2 := a.Signal().Wait(context.Background())
	require.Error(t, err1)
	require.Error(t, err2)
	assert.Equal(t, err1.Error(), err2.Error())
}

func TestLinearDAGPropagation(t *testing.T) {
	var ranB, ranC int32
	a := New("A", func(context.Context) (ResultCode, error) { return ErrFailed, nil })
	b := New("B", func(context.Context) (ResultCode, error) {
		atomic.AddInt32(&ranB, 1)
		return OK, nil
	})
	c := New("C", func(context.Context) (ResultCode, error) {
		atomic.AddInt32(&ranC, 1)
		return OK, nil
	})
	a.AddDependency(b)
	b.AddDependency(c)

	RunDAG(context.Background(), []*Action{a, b, c}, 10, nil)

	assert.Equal(t, StatusFailed, a.Status())
	assert.Equal(t, StatusFailed, b.Status())
	assert.Equal(t, StatusFailed, c.Status())
	assert.Equal(t, int32(0), atomic.LoadInt32(&ranB))
	assert.Equal(t, int32(0), atomic.LoadInt32(&ranC))
}

func TestDiamondSuccessWithOverlap(t *testing.T) {
	var concurrent int32
	var maxConcurrent int32
	track := func() (ResultCode, error) {
		n := atomic.AddInt32(&concurrent, 1)
		for {
			old := atomic.LoadInt32(&maxConcurrent)
			if n <= old || atomic.CompareAndSwapInt32(&maxConcurrent, old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&concurrent, -1)
		return OK, nil
	}

	a := New("A", func(context.Context) (ResultCode, error) { return OK, nil })
	b := New("B", func(context.Context) (ResultCode, error) { return track() })
	c := New("C", func(context.Context) (ResultCode, error) { return track() })
	d := New("D", func(context.Context) (ResultCode, error) { return OK, nil })

	a.AddDependency(b)
	a.AddDependency(c)
	b.AddDependency(d)
	c.AddDependency(d)

	RunDAG(context.Background(), []*Action{a, b, c, d}, 10, nil)

	assert.Equal(t, StatusSucceeded, d.Status())
	assert.GreaterOrEqual(t, atomic.LoadInt32(&maxConcurrent), int32(2))
}

func TestDisturbTemplateAbortsOnFirstFailure(t *testing.T) {
	var disturbCalls, recoverCalls int32
	disturb := func(context.Context) (ResultCode, error) {
		n := atomic.AddInt32(&disturbCalls, 1)
		if n == 2 {
			return ErrFailed, nil
		}
		return OK, nil
	}
	recover := func(context.Context) (ResultCode, error) {
		atomic.AddInt32(&recoverCalls, 1)
		return OK, nil
	}
	a := NewDisturb("disturb", 5, 0, 0, disturb, recover)
	a.Run(context.Background())

	assert.Equal(t, StatusFailed, a.Status())
	assert.Equal(t, int32(2), atomic.LoadInt32(&disturbCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&recoverCalls))
}

func TestLoopCorrectness(t *testing.T) {
	ctx := expr.NewContext()
	ctx.Set("i", expr.Int(0))

	inc := New("incr", func(context.Context) (ResultCode, error) {
		v, _ := ctx.Get("i")
		n, _ := v.AsInt()
		ctx.Set("i", expr.Int(n+1))
		return OK, nil
	})

	loop := NewLoop(ctx, "$i < 3", []*Action{inc}, 1)
	loop.Run(context.Background())

	assert.Equal(t, StatusSucceeded, loop.Status())
	v, _ := ctx.Get("i")
	n, _ := v.AsInt()
	assert.Equal(t, int64(3), n)
}

func TestLoopZeroIterationsWhenConditionFalseAtEntry(t *testing.T) {
	ctx := expr.NewContext()
	ctx.Set("i", expr.Int(5))

	var ran bool
	inc := New("incr", func(context.Context) (ResultCode, error) {
		ran = true
		return OK, nil
	})

	loop := NewLoop(ctx, "$i < 3", []*Action{inc}, 1)
	loop.Run(context.Background())

	assert.Equal(t, StatusSucceeded, loop.Status())
	assert.False(t, ran)
}

func TestResetIsNoOpWhileRunning(t *testing.T) {
	a := New("a", func(context.Context) (ResultCode, error) { return OK, nil })
	a.mu.Lock()
	a.status = StatusRunning
	a.mu.Unlock()
	a.Reset()
	assert.Equal(t, StatusRunning, a.Status())
}
