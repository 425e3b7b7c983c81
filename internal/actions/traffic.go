package actions

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/vesoft-chaos/orchestrator/internal/action"
	"github.com/vesoft-chaos/orchestrator/internal/dbclient"
)

// sendBatch inserts a batch of vertices, retrying until try attempts are
// exhausted. Grounded on WriteCircleAction::sendBatch.
func sendBatch(ctx context.Context, client dbclient.Client, tag, col string, values []string, tries int) (action.ResultCode, error) {
	cmd := fmt.Sprintf("INSERT VERTEX %s (%s) VALUES %s", tag, col, strings.Join(values, ","))
	var lastErr error
	for attempt := 1; attempt <= tries; attempt++ {
		code, _, errMsg, _, err := client.Execute(ctx, cmd)
		if code == dbclient.Succeeded {
			return action.OK, nil
		}
		lastErr = err
		if lastErr == nil && errMsg != "" {
			lastErr = fmt.Errorf("%s", errMsg)
		}
		if err := retrySleep(ctx, attempt); err != nil {
			return action.ErrFailed, err
		}
	}
	return action.ErrFailed, lastErr
}

// WriteCircle inserts totalRows vertices arranged in a ring (each vertex's
// sole property points at the next row's id, the last pointing back to
// row 1), batchNum rows per INSERT, so a later WalkThrough can validate the
// ring traversal comes back to its start. Grounded on
// WriteCircleAction::doRun.
func WriteCircle(client dbclient.Client, tag, col string, totalRows uint64, batchNum uint32, tries int) *action.Action {
	return action.New(fmt.Sprintf("Write circle to %s", tag), func(ctx context.Context) (action.ResultCode, error) {
		batch := make([]string, 0, batchNum)
		var row uint64 = 1
		for row < totalRows {
			if uint32(len(batch)) == batchNum {
				if rc, err := sendBatch(ctx, client, tag, col, batch, tries); rc != action.OK {
					return rc, err
				}
				batch = batch[:0]
			}
			batch = append(batch, fmt.Sprintf("%d:(%d)", row, row+1))
			row++
		}
		if uint32(len(batch)) == batchNum {
			if rc, err := sendBatch(ctx, client, tag, col, batch, tries); rc != action.OK {
				return rc, err
			}
			batch = batch[:0]
		}
		batch = append(batch, fmt.Sprintf("%d:(%d)", row, uint64(1)))
		return sendBatch(ctx, client, tag, col, batch, tries)
	})
}

// fetchNext issues a FETCH PROP query and returns the linked row's id.
// Grounded on WalkThroughAction::sendCommand.
func fetchNext(ctx context.Context, client dbclient.Client, tag, col string, id uint64, tries int) (uint64, error) {
	cmd := fmt.Sprintf("FETCH PROP ON %s %d YIELD %s.%s", tag, id, tag, col)
	var lastErr error
	for attempt := 1; attempt <= tries; attempt++ {
		code, ds, errMsg, _, err := client.Execute(ctx, cmd)
		if code == dbclient.Succeeded {
			row, ok := ds.LastRow()
			if !ok || len(row) < 2 {
				return 0, fmt.Errorf("bad result for %s", cmd)
			}
			v, ok := row.Int(1)
			if !ok {
				return 0, fmt.Errorf("non-integer column in response to %s", cmd)
			}
			return uint64(v), nil
		}
		lastErr = err
		if lastErr == nil && errMsg != "" {
			lastErr = fmt.Errorf("%s", errMsg)
		}
		if err := retrySleep(ctx, attempt); err != nil {
			return 0, err
		}
	}
	return 0, lastErr
}

// WalkThrough starts from a random vertex written by WriteCircle and
// follows the ring up to totalRows hops, succeeding only if it returns to
// its starting vertex after exactly totalRows hops — verifying the data
// written by WriteCircle is intact and consistently readable. Grounded on
// WalkThroughAction::doRun.
func WalkThrough(client dbclient.Client, tag, col string, totalRows uint64, tries int) *action.Action {
	return action.New(fmt.Sprintf("Walk through %s", tag), func(ctx context.Context) (action.ResultCode, error) {
		if totalRows == 0 {
			return action.ErrBadArgument, fmt.Errorf("totalRows must be positive")
		}
		start := uint64(rand.Int63n(int64(totalRows)))
		id := start
		var count uint64
		for count = 1; count <= totalRows; count++ {
			next, err := fetchNext(ctx, client, tag, col, id, tries)
			if err != nil {
				return action.ErrFailed, err
			}
			id = next
			if id == start {
				break
			}
		}
		if id != start {
			return action.ErrFailed, fmt.Errorf("walk did not return to start: id=%d start=%d", id, start)
		}
		if count == totalRows {
			return action.OK, nil
		}
		return action.ErrFailed, fmt.Errorf("walk closed early after %d hops, want %d", count, totalRows)
	})
}

// parseRowInt is a small helper shared by callers that need a column read
// as int64 without threading dbclient.Row through every call site.
func parseRowInt(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }
