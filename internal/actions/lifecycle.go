package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/vesoft-chaos/orchestrator/internal/action"
	"github.com/vesoft-chaos/orchestrator/internal/cluster"
)

// checkProcAlive is the CheckProcAction equivalent: `ps -p <pid>` over the
// runner, true if the process is still alive.
func checkProcAlive(ctx context.Context, r cluster.Runner, inst *cluster.Instance, pid int) bool {
	code, _, err := r.Run(ctx, fmt.Sprintf("ps -p %d > /dev/null", pid), inst.Host, nil, nil, inst.Owner)
	return err == nil && code == 0
}

// Crash kills the instance with `kill -9` and confirms the pid is gone.
// Grounded on CrashAction::doRun.
func Crash(inst *cluster.Instance, r cluster.Runner) *action.Action {
	return action.New(fmt.Sprintf("kill -9 %s", inst), func(ctx context.Context) (action.ResultCode, error) {
		pid, hadPID := inst.CachedPID()
		if !hadPID {
			pid, hadPID = inst.GetPID(ctx, r)
		}
		if _, _, err := r.Run(ctx, inst.KillCommand(), inst.Host, nil, nil, inst.Owner); err != nil {
			return action.ErrFailed, err
		}
		if !hadPID {
			return action.ErrFailed, fmt.Errorf("no pid on record for %s", inst)
		}
		if checkProcAlive(ctx, r, inst, pid) {
			return action.ErrFailed, fmt.Errorf("%s still alive after kill -9", inst)
		}
		inst.SetState(cluster.StateStopped)
		return action.OK, nil
	})
}

// Start launches the instance's service script and confirms the new pid is
// alive. Grounded on StartAction::doRun.
func Start(inst *cluster.Instance, r cluster.Runner) *action.Action {
	return action.New(fmt.Sprintf("start %s", inst), func(ctx context.Context) (action.ResultCode, error) {
		if _, _, err := r.Run(ctx, inst.StartCommand(), inst.Host, nil, nil, inst.Owner); err != nil {
			return action.ErrFailed, err
		}
		pid, ok := inst.GetPID(ctx, r)
		if !ok {
			return action.ErrFailed, fmt.Errorf("%s produced no pid after start", inst)
		}
		if !checkProcAlive(ctx, r, inst, pid) {
			return action.ErrFailed, fmt.Errorf("%s pid %d not alive after start", inst, pid)
		}
		inst.SetState(cluster.StateRunning)
		return action.OK, nil
	})
}

// Stop runs the instance's stop script and then checks whether the process
// is gone, repeating both steps up to 10 times with a sleep between
// attempts before giving up. Grounded on StopAction::doRun.
func Stop(inst *cluster.Instance, r cluster.Runner) *action.Action {
	return action.New(fmt.Sprintf("stop %s", inst), func(ctx context.Context) (action.ResultCode, error) {
		for attempt := 1; attempt <= 10; attempt++ {
			if _, _, err := r.Run(ctx, inst.StopCommand(), inst.Host, nil, nil, inst.Owner); err != nil {
				return action.ErrFailed, err
			}
			pid, ok := inst.GetPID(ctx, r)
			if !ok {
				inst.SetState(cluster.StateStopped)
				return action.OK, nil
			}
			if checkProcAlive(ctx, r, inst, pid) {
				if err := retrySleep(ctx, attempt); err != nil {
					return action.ErrFailed, err
				}
				continue
			}
			inst.SetState(cluster.StateStopped)
			return action.OK, nil
		}
		return action.ErrFailed, fmt.Errorf("%s still running after stop retries", inst)
	})
}

// CleanWal removes the wal directory of spaceID on inst. Grounded on
// CleanWalAction::doRun.
func CleanWal(inst *cluster.Instance, r cluster.Runner, spaceID int64) *action.Action {
	return action.New(fmt.Sprintf("clean wal space %d on %s", spaceID, inst), func(ctx context.Context) (action.ResultCode, error) {
		cmd := "rm -rf " + inst.WalDir(spaceID)
		if _, _, err := r.Run(ctx, cmd, inst.Host, nil, nil, inst.Owner); err != nil {
			return action.ErrFailed, err
		}
		return action.OK, nil
	})
}

// CleanData removes inst's whole data directory, or just spaceID's data
// directory if spaceID is non-negative. Grounded on CleanDataAction::doRun.
func CleanData(inst *cluster.Instance, r cluster.Runner, spaceID int64) *action.Action {
	return action.New(fmt.Sprintf("clean data %s", inst), func(ctx context.Context) (action.ResultCode, error) {
		dir := inst.DataDir()
		if spaceID >= 0 {
			dir = inst.SpaceDataDir(spaceID)
		}
		if _, _, err := r.Run(ctx, "rm -rf "+dir, inst.Host, nil, nil, inst.Owner); err != nil {
			return action.ErrFailed, err
		}
		return action.OK, nil
	})
}

// CleanCheckpoint removes every snapshot directory under inst's install
// path. Grounded on CleanCheckpointAction::doRun.
func CleanCheckpoint(inst *cluster.Instance, r cluster.Runner) *action.Action {
	return action.New(fmt.Sprintf("clean snapshot on %s", inst), func(ctx context.Context) (action.ResultCode, error) {
		cmd := "rm -rf " + inst.InstallPath + "/data/snapshot/*"
		if _, _, err := r.Run(ctx, cmd, inst.Host, nil, nil, inst.Owner); err != nil {
			return action.ErrFailed, err
		}
		return action.OK, nil
	})
}

// RestoreFromCheckpoint replaces inst's data directory with the most recent
// snapshot, requiring the instance to be stopped first. Grounded on
// RestoreFromCheckpointAction::doRun.
func RestoreFromCheckpoint(inst *cluster.Instance, r cluster.Runner) *action.Action {
	return action.New(fmt.Sprintf("restore %s from snapshot", inst), func(ctx context.Context) (action.ResultCode, error) {
		if inst.State() == cluster.StateRunning {
			return action.ErrBadArgument, fmt.Errorf("%s must be stopped before restoring from snapshot", inst)
		}
		script := strings.Join([]string{
			"rm -rf " + inst.DataDir(),
			"latest=$(ls -1t " + inst.InstallPath + "/data/snapshot | head -1)",
			"cp -r " + inst.InstallPath + "/data/snapshot/$latest " + inst.DataDir(),
		}, " && ")
		if _, _, err := r.Run(ctx, script, inst.Host, nil, nil, inst.Owner); err != nil {
			return action.ErrFailed, err
		}
		return action.OK, nil
	})
}

// RestoreFromDataDir replaces inst's data directory with a copy of
// srcDataPath, requiring the instance to be stopped first. Grounded on
// RestoreFromDataDirAction::doRun.
func RestoreFromDataDir(inst *cluster.Instance, r cluster.Runner, srcDataPath string) *action.Action {
	return action.New(fmt.Sprintf("restore %s from %s", inst, srcDataPath), func(ctx context.Context) (action.ResultCode, error) {
		if inst.State() == cluster.StateRunning {
			return action.ErrBadArgument, fmt.Errorf("%s must be stopped before restoring from a data folder", inst)
		}
		cmd := fmt.Sprintf("rm -rf %s && cp -r %s %s", inst.DataDir(), srcDataPath, inst.DataDir())
		if _, _, err := r.Run(ctx, cmd, inst.Host, nil, nil, inst.Owner); err != nil {
			return action.ErrFailed, err
		}
		return action.OK, nil
	})
}
