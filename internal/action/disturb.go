package action

import (
	"context"
	"time"
)

// DisturbFunc performs one phase (disturb or recover) of a disturb action.
type DisturbFunc func(ctx context.Context) (ResultCode, error)

// NewDisturb builds an action implementing the disturb-action template
// alternating disturb/recover loopTimes times, aborting
// immediately on the first non-OK result from either phase.
//
// This is deliberately fail-fast with no compensating rollback: a disturb
// phase that partially applies a fault (e.g. half the planned iptables
// rules) and then fails leaves that fault in place. DESIGN.md open-question
// #4 preserves this as specified — callers who need guaranteed cleanup must
// add an explicit recovery action to their plan.
func NewDisturb(label string, loopTimes int, timeToDisturb, timeToRecover time.Duration, disturb, recover DisturbFunc) *Action {
	return New(label, func(ctx context.Context) (ResultCode, error) {
		for i := 0; i < loopTimes; i++ {
			if err := sleepCtx(ctx, timeToDisturb); err != nil {
				return ErrFailed, err
			}
			if rc, err := disturb(ctx); rc != OK {
				return rc, err
			}
			if err := sleepCtx(ctx, timeToRecover); err != nil {
				return ErrFailed, err
			}
			if rc, err := recover(ctx); rc != OK {
				return rc, err
			}
		}
		return OK, nil
	})
}

// sleepCtx sleeps for d or returns ctx.Err() if ctx is cancelled first.
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
