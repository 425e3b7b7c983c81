// Package actions builds the concrete chaos actions on top of
// internal/action's generic Action/DisturbAction machinery: connecting to
// the database, driving schema/meta changes, generating traffic, and
// disturbing or restoring cluster instances.
package actions

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vesoft-chaos/orchestrator/internal/action"
	"github.com/vesoft-chaos/orchestrator/internal/dbclient"
	"github.com/vesoft-chaos/orchestrator/internal/expr"
)

// retrySleep backs off linearly with the attempt number, matching the
// source's `sleep(retry)` calls.
func retrySleep(ctx context.Context, attempt int) error {
	return sleepCtx(ctx, time.Duration(attempt)*time.Second)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientConnect builds the action that logs a query client into the
// cluster, retrying retryTimes times before giving up. Grounded on
// ClientConnectAction::doRun.
func ClientConnect(client dbclient.Client, user, password string, retryTimes int) *action.Action {
	return action.New(fmt.Sprintf("Connect as %s", user), func(ctx context.Context) (action.ResultCode, error) {
		var lastErr error
		for attempt := 1; attempt <= retryTimes; attempt++ {
			code, err := client.Connect(ctx, user, password)
			if code == dbclient.Succeeded {
				return action.OK, nil
			}
			lastErr = err
			if err := retrySleep(ctx, attempt); err != nil {
				return action.ErrFailed, err
			}
		}
		return action.ErrFailed, lastErr
	})
}

// CheckResp inspects a successful query's DataSet and decides whether the
// meta action actually succeeded; the default accepts any response.
type CheckResp func(ds *dbclient.DataSet) (action.ResultCode, error)

func acceptAny(*dbclient.DataSet) (action.ResultCode, error) { return action.OK, nil }

// metaAction is the shared retry-and-execute body every query-path meta
// command uses: send command to client_, retry on transport failure, then
// hand the successful response to check and retry on its classification too.
// OK terminates the loop; ErrFailedNoRetry aborts immediately; any other
// code (including ErrNotFinished) is treated as "not converged yet" and
// retried with the same backoff as a transport failure. Grounded on
// MetaAction::doRun; the retry bound is inclusive (attempt 1..retryTimes)
// per DESIGN.md open-question #3, correcting the source's exclusive
// `while (++retry < retryTimes)` loop which only ever performs
// retryTimes-1 attempts.
func metaAction(label, command string, client dbclient.Client, retryTimes int, check CheckResp) *action.Action {
	if check == nil {
		check = acceptAny
	}
	return action.New(label, func(ctx context.Context) (action.ResultCode, error) {
		lastCode := action.ErrFailed
		var lastErr error
		for attempt := 1; attempt <= retryTimes; attempt++ {
			code, ds, errMsg, _, err := client.Execute(ctx, command)
			if code == dbclient.Succeeded {
				lastCode, lastErr = check(ds)
				if lastCode == action.OK || lastCode == action.ErrFailedNoRetry {
					return lastCode, lastErr
				}
			} else {
				lastCode, lastErr = action.ErrFailed, err
				if lastErr == nil && errMsg != "" {
					lastErr = fmt.Errorf("%s", errMsg)
				}
			}
			if err := retrySleep(ctx, attempt); err != nil {
				return action.ErrFailed, err
			}
		}
		return lastCode, lastErr
	})
}

// CreateSpace issues CREATE SPACE IF NOT EXISTS.
func CreateSpace(client dbclient.Client, spaceName string, replica, parts, retryTimes int) *action.Action {
	cmd := fmt.Sprintf("CREATE SPACE IF NOT EXISTS %s (replica_factor=%d, partition_num=%d)", spaceName, replica, parts)
	return metaAction(cmd, cmd, client, retryTimes, nil)
}

// UseSpace issues USE <space>.
func UseSpace(client dbclient.Client, spaceName string, retryTimes int) *action.Action {
	cmd := "USE " + spaceName
	return metaAction(cmd, cmd, client, retryTimes, nil)
}

// SchemaProp is one (name, type) pair of a CREATE TAG/EDGE statement.
type SchemaProp struct {
	Name string
	Type string
}

// CreateSchema issues CREATE TAG|EDGE IF NOT EXISTS. edgeOrTag true builds
// an edge, false builds a tag, matching CreateSchemaAction::command.
func CreateSchema(client dbclient.Client, name string, props []SchemaProp, edgeOrTag bool, retryTimes int) *action.Action {
	var b strings.Builder
	b.WriteString("CREATE ")
	if edgeOrTag {
		b.WriteString("EDGE ")
	} else {
		b.WriteString("TAG ")
	}
	b.WriteString("IF NOT EXISTS ")
	b.WriteString(name)
	if len(props) > 0 {
		b.WriteString("(")
		parts := make([]string, len(props))
		for i, p := range props {
			parts[i] = p.Name + " " + p.Type
		}
		b.WriteString(strings.Join(parts, ","))
		b.WriteString(")")
	}
	cmd := b.String()
	return metaAction(cmd, cmd, client, retryTimes, nil)
}

// BalanceLeader issues `balance leader`. Must run after UseSpace.
func BalanceLeader(client dbclient.Client, retryTimes int) *action.Action {
	return metaAction("balance leader", "balance leader", client, retryTimes, nil)
}

// balancedMarker is the substring a `balance data` response carries once the
// cluster has actually converged.
const balancedMarker = "The cluster is balanced!"

// checkBalanced reports convergence by scanning the response for
// balancedMarker; absent that, the balance job is still in progress and the
// retry loop should keep polling rather than fail outright.
func checkBalanced(ds *dbclient.DataSet) (action.ResultCode, error) {
	if ds != nil {
		for _, row := range ds.Rows {
			for _, cell := range row {
				if strings.Contains(cell, balancedMarker) {
					return action.OK, nil
				}
			}
		}
	}
	return action.ErrNotFinished, fmt.Errorf("balance data: cluster not yet balanced")
}

// BalanceData issues `balance data`. Must run after UseSpace.
func BalanceData(client dbclient.Client, retryTimes int) *action.Action {
	return metaAction("balance data", "balance data", client, retryTimes, checkBalanced)
}

// DescSpace issues `desc space <name>` and, if resultVar is non-empty,
// stores the parsed space id into ctx under that name the way
// DescSpaceAction caches spaceId_ for later CheckLeaders/CleanWal use.
func DescSpace(client dbclient.Client, ctx *expr.Context, spaceName, resultVar string, retryTimes int) *action.Action {
	cmd := "desc space " + spaceName
	return metaAction(cmd, cmd, client, retryTimes, func(ds *dbclient.DataSet) (action.ResultCode, error) {
		row, ok := ds.LastRow()
		if !ok {
			return action.ErrFailed, fmt.Errorf("desc space %s returned no rows", spaceName)
		}
		if resultVar != "" {
			if id, ok := row.Int(0); ok {
				ctx.Set(resultVar, expr.Int(id))
			}
		}
		return action.OK, nil
	})
}

// leaderDistribution splits a "show hosts" Total row's col4 cell into its
// per-space leader counts: the cell is a comma-separated list of
// "spaceName:count" fragments. Malformed fragments are skipped rather than
// failing the whole parse, since a still-settling cluster may list a space
// mid-registration with no count yet.
func leaderDistribution(cell string) map[string]int64 {
	dist := make(map[string]int64)
	for _, fragment := range strings.Split(cell, ",") {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			continue
		}
		parts := strings.SplitN(fragment, ":", 2)
		if len(parts) != 2 {
			continue
		}
		count, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			continue
		}
		dist[strings.TrimSpace(parts[0])] = count
	}
	return dist
}

// CheckLeaders issues `show hosts` and verifies the "Total" row's leader
// distribution: col4 holds a "spaceName:count[,spaceName:count...]" list,
// and the count for spaceName must equal expectedNum, matching
// CheckLeadersAction::checkLeaderDis. If resultVar is non-empty the matched
// count is additionally stored under that name.
func CheckLeaders(client dbclient.Client, ectx *expr.Context, spaceName string, expectedNum int64, resultVar string, retryTimes int) *action.Action {
	return metaAction("show hosts", "show hosts", client, retryTimes, func(ds *dbclient.DataSet) (action.ResultCode, error) {
		row, ok := ds.LastRow()
		if !ok {
			return action.ErrFailed, fmt.Errorf("show hosts returned no rows")
		}
		if len(row) < 5 {
			return action.ErrFailed, fmt.Errorf("show hosts row has %d columns, want >= 5", len(row))
		}
		name, _ := row.String(0)
		cell, _ := row.String(4)
		dist := leaderDistribution(cell)
		count := dist[spaceName]
		if resultVar != "" {
			ectx.Set(resultVar, expr.Int(count))
		}
		if name == "Total" && count == expectedNum {
			return action.OK, nil
		}
		return action.ErrFailed, fmt.Errorf("leader distribution mismatch: col0=%s space=%s count=%d want %d", name, spaceName, count, expectedNum)
	})
}

// UpdateConfigs issues `UPDATE CONFIGS <layer>:<name>=<value>`.
func UpdateConfigs(client dbclient.Client, layer, name, value string, retryTimes int) *action.Action {
	cmd := fmt.Sprintf("UPDATE CONFIGS %s:%s=%s", layer, name, value)
	a := metaAction(cmd, cmd, client, retryTimes, nil)
	return a
}

// Compaction issues `submit job compact`.
func Compaction(client dbclient.Client, retryTimes int) *action.Action {
	return metaAction("submit job compact", "submit job compact", client, retryTimes, nil)
}

// CreateSnapshot issues `CREATE SNAPSHOT`.
func CreateSnapshot(client dbclient.Client, retryTimes int) *action.Action {
	return metaAction("CREATE SNAPSHOT", "CREATE SNAPSHOT", client, retryTimes, nil)
}
