package actions

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesoft-chaos/orchestrator/internal/action"
	"github.com/vesoft-chaos/orchestrator/internal/cluster"
	"github.com/vesoft-chaos/orchestrator/internal/dbclient"
	"github.com/vesoft-chaos/orchestrator/internal/expr"
	"github.com/vesoft-chaos/orchestrator/internal/plan"
)

// fakeRunner is an in-memory cluster.Runner used by lifecycle/chaos tests.
type fakeRunner struct {
	script func(command, host string) (int, error)
	calls  int32
}

func (f *fakeRunner) Run(ctx context.Context, command, host string, onStdout, onStderr func(string), owner string) (int, time.Duration, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.script == nil {
		return 0, 0, nil
	}
	code, err := f.script(command, host)
	return code, 0, err
}

func TestClientConnectRetriesInclusiveBound(t *testing.T) {
	fake := dbclient.NewFake(
		func(string) (dbclient.ErrorCode, *dbclient.DataSet, string, string) { return dbclient.Succeeded, &dbclient.DataSet{}, "", "" },
	)
	// Connect always succeeds immediately; retryTimes=1 must still allow
	// exactly one attempt to succeed (off-by-one fix, DESIGN.md question 3).
	a := ClientConnect(fake, "user", "pw", 1)
	a.Run(context.Background())
	assert.Equal(t, action.StatusSucceeded, a.Status())
}

func TestMetaActionExhaustsRetriesThenFails(t *testing.T) {
	fake := dbclient.NewFake(
		func(string) (dbclient.ErrorCode, *dbclient.DataSet, string, string) {
			return dbclient.ErrExecution, nil, "boom", ""
		},
	)
	fake.Connect(context.Background(), "u", "p")
	a := CreateSpace(fake, "test", 3, 100, 2)
	a.Run(context.Background())
	assert.Equal(t, action.StatusFailed, a.Status())
	assert.Equal(t, 2, fake.CallCount())
}

func TestCreateSpaceSucceedsOnFirstTry(t *testing.T) {
	fake := dbclient.NewFake(
		func(string) (dbclient.ErrorCode, *dbclient.DataSet, string, string) { return dbclient.Succeeded, &dbclient.DataSet{}, "", "" },
	)
	fake.Connect(context.Background(), "u", "p")
	a := CreateSpace(fake, "test", 3, 100, 32)
	a.Run(context.Background())
	assert.Equal(t, action.StatusSucceeded, a.Status())
	assert.Equal(t, 1, fake.CallCount())
}

func TestCheckLeadersAcceptsMatchingTotal(t *testing.T) {
	fake := dbclient.NewFake(func(string) (dbclient.ErrorCode, *dbclient.DataSet, string, string) {
		ds := &dbclient.DataSet{Rows: []dbclient.Row{{"Total", "", "", "", "space1:3,space2:5", ""}}}
		return dbclient.Succeeded, ds, "", ""
	})
	fake.Connect(context.Background(), "u", "p")
	ectx := expr.NewContext()
	a := CheckLeaders(fake, ectx, "space1", 3, "leaders", 32)
	a.Run(context.Background())
	assert.Equal(t, action.StatusSucceeded, a.Status())
	v, ok := ectx.Get("leaders")
	require.True(t, ok)
	n, _ := v.AsInt()
	assert.Equal(t, int64(3), n)
}

func TestCheckLeadersRejectsMismatch(t *testing.T) {
	fake := dbclient.NewFake(func(string) (dbclient.ErrorCode, *dbclient.DataSet, string, string) {
		ds := &dbclient.DataSet{Rows: []dbclient.Row{{"Total", "", "", "", "space1:2", ""}}}
		return dbclient.Succeeded, ds, "", ""
	})
	fake.Connect(context.Background(), "u", "p")
	a := CheckLeaders(fake, expr.NewContext(), "space1", 3, "", 1)
	a.Run(context.Background())
	assert.Equal(t, action.StatusFailed, a.Status())
}

func TestBalanceDataRetriesUntilClusterReportsBalanced(t *testing.T) {
	notFinished := func(string) (dbclient.ErrorCode, *dbclient.DataSet, string, string) {
		return dbclient.Succeeded, &dbclient.DataSet{Rows: []dbclient.Row{{"in progress"}}}, "", ""
	}
	balanced := func(string) (dbclient.ErrorCode, *dbclient.DataSet, string, string) {
		return dbclient.Succeeded, &dbclient.DataSet{Rows: []dbclient.Row{{"The cluster is balanced!"}}}, "", ""
	}
	fake := dbclient.NewFake(notFinished, notFinished, balanced)
	fake.Connect(context.Background(), "u", "p")
	a := BalanceData(fake, 5)
	a.Run(context.Background())
	assert.Equal(t, action.StatusSucceeded, a.Status())
	assert.Equal(t, 3, fake.CallCount())
}

func TestWriteCircleBatchesAllRows(t *testing.T) {
	client := dbclient.NewFake(func(stmt string) (dbclient.ErrorCode, *dbclient.DataSet, string, string) {
		return dbclient.Succeeded, &dbclient.DataSet{}, "", ""
	})
	client.Connect(context.Background(), "u", "p")
	w := WriteCircle(client, "t", "next", 5, 2, 4)
	w.Run(context.Background())
	assert.Equal(t, action.StatusSucceeded, w.Status())
}

func TestStartFailsWhenPIDCannotBeRead(t *testing.T) {
	inst := cluster.New("h1", "/opt/nebula", cluster.RoleStorage, "/opt/nebula/etc/storaged.conf", "owner")
	inst.LoadConfig("port = 9779\n")

	runner := &fakeRunner{script: func(command, host string) (int, error) {
		if command == "cat "+inst.InstallPath+"/pids/nebula-storaged.pid" {
			return 0, nil
		}
		return 0, nil
	}}

	start := Start(inst, runner)
	start.Run(context.Background())
	// GetPID reads an empty pid file through our fake (no stdout callback
	// invoked), so it will fail to parse a pid and the action fails — this
	// exercises the pid-parse failure path deterministically.
	assert.Equal(t, action.StatusFailed, start.Status())
	assert.Greater(t, runner.calls, int32(0))
}

func TestRandomRestartFailsFastWhenCrashFails(t *testing.T) {
	inst := cluster.New("h1", "/opt/nebula", cluster.RoleStorage, "", "owner")
	runner := &fakeRunner{}
	restart := RandomRestart([]*cluster.Instance{inst}, runner, 1, 0, 0, false, false)
	restart.Run(context.Background())
	// Crash requires a cached pid; with none cached and the fake returning
	// no stdout, GetPID fails, so Crash (and thus the whole disturb cycle)
	// fails on its first iteration — verifying the fail-fast, no-rollback
	// contract (DESIGN.md open-question #4).
	assert.Equal(t, action.StatusFailed, restart.Status())
}

func TestEmptyAlwaysSucceeds(t *testing.T) {
	a := Empty("noop")
	a.Run(context.Background())
	assert.Equal(t, action.StatusSucceeded, a.Status())
}

func TestRunTaskRejectsNilBody(t *testing.T) {
	a := RunTask("broken", nil)
	a.Run(context.Background())
	assert.Equal(t, action.StatusFailed, a.Status())
}

func TestWaitSucceedsAfterDuration(t *testing.T) {
	a := Wait(1 * time.Millisecond)
	start := time.Now()
	a.Run(context.Background())
	assert.Equal(t, action.StatusSucceeded, a.Status())
	assert.GreaterOrEqual(t, time.Since(start), 1*time.Millisecond)
}

func TestAssignStoresEvaluatedValue(t *testing.T) {
	ctx := expr.NewContext()
	a := Assign(ctx, "x", "1 + 2")
	a.Run(context.Background())
	assert.Equal(t, action.StatusSucceeded, a.Status())
	v, ok := ctx.Get("x")
	require.True(t, ok)
	n, _ := v.AsInt()
	assert.Equal(t, int64(3), n)
}

func TestExecutionExpressionFailsWhenFalse(t *testing.T) {
	ctx := expr.NewContext()
	ctx.Set("ready", expr.Bool(false))
	a := ExecutionExpression(ctx, "$ready")
	a.Run(context.Background())
	assert.Equal(t, action.StatusFailed, a.Status())
}

func TestExecutionExpressionSucceedsWhenTrue(t *testing.T) {
	ctx := expr.NewContext()
	ctx.Set("ready", expr.Bool(true))
	a := ExecutionExpression(ctx, "$ready")
	a.Run(context.Background())
	assert.Equal(t, action.StatusSucceeded, a.Status())
}

type fakeNotifier struct{ sent int32 }

func (f *fakeNotifier) Send(ctx context.Context, to, subject, body string) error {
	atomic.AddInt32(&f.sent, 1)
	return nil
}

func TestSendEmailDelegatesToNotifier(t *testing.T) {
	n := &fakeNotifier{}
	var _ plan.Notifier = n
	a := SendEmail(n, "ops@example.com", "subject", "body")
	a.Run(context.Background())
	assert.Equal(t, action.StatusSucceeded, a.Status())
	assert.Equal(t, int32(1), n.sent)
}
