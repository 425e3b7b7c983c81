package actions

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/vesoft-chaos/orchestrator/internal/action"
	"github.com/vesoft-chaos/orchestrator/internal/cluster"
)

// pick returns a uniformly random element of instances.
func pick(instances []*cluster.Instance) *cluster.Instance {
	return instances[rand.Intn(len(instances))]
}

// RandomRestart repeatedly kills and restarts a randomly chosen instance
// from instances, loopTimes times, graceful selecting Stop over Crash and
// cleanData wiping the data directory between the two phases. Grounded on
// RandomRestartAction.
func RandomRestart(instances []*cluster.Instance, r cluster.Runner, loopTimes int, timeToDisturb, timeToRecover time.Duration, graceful, cleanData bool) *action.Action {
	var picked *cluster.Instance
	disturb := func(ctx context.Context) (action.ResultCode, error) {
		picked = pick(instances)
		var stop *action.Action
		if graceful {
			stop = Stop(picked, r)
		} else {
			stop = Crash(picked, r)
		}
		rc, err := stop.ForceRerun(ctx)
		if rc != action.OK {
			return rc, err
		}
		if cleanData {
			if rc, err := CleanData(picked, r, -1).ForceRerun(ctx); rc != action.OK {
				return rc, err
			}
		}
		return action.OK, nil
	}
	recover := func(ctx context.Context) (action.ResultCode, error) {
		return Start(picked, r).ForceRerun(ctx)
	}
	return action.NewDisturb(fmt.Sprintf("Random restart: loop %d", loopTimes), loopTimes, timeToDisturb, timeToRecover, disturb, recover)
}

// RandomPartition isolates a randomly chosen storage instance from the rest
// of the cluster with iptables DROP rules, then removes them on recover.
// Grounded on RandomPartitionAction.
func RandomPartition(metas, storages []*cluster.Instance, r cluster.Runner, loopTimes int, timeToDisturb, timeToRecover time.Duration) *action.Action {
	var picked *cluster.Instance
	peers := func() []*cluster.Instance {
		all := make([]*cluster.Instance, 0, len(metas)+len(storages))
		all = append(all, metas...)
		all = append(all, storages...)
		return all
	}
	disturb := func(ctx context.Context) (action.ResultCode, error) {
		picked = pick(storages)
		for _, peer := range peers() {
			if peer == picked {
				continue
			}
			cmd := fmt.Sprintf("iptables -A INPUT -s %s -j DROP && iptables -A OUTPUT -d %s -j DROP", peer.Host, peer.Host)
			if _, _, err := r.Run(ctx, cmd, picked.Host, nil, nil, picked.Owner); err != nil {
				return action.ErrFailed, err
			}
		}
		return action.OK, nil
	}
	recover := func(ctx context.Context) (action.ResultCode, error) {
		for _, peer := range peers() {
			if peer == picked {
				continue
			}
			cmd := fmt.Sprintf("iptables -D INPUT -s %s -j DROP && iptables -D OUTPUT -d %s -j DROP", peer.Host, peer.Host)
			if _, _, err := r.Run(ctx, cmd, picked.Host, nil, nil, picked.Owner); err != nil {
				return action.ErrFailed, err
			}
		}
		return action.OK, nil
	}
	return action.NewDisturb(fmt.Sprintf("Random partition: loop %d", loopTimes), loopTimes, timeToDisturb, timeToRecover, disturb, recover)
}

// RandomTrafficControl adds a tcconfig delay/loss/duplicate rule on a
// randomly chosen storage instance's network device, then clears it.
// Grounded on RandomTrafficControlAction.
func RandomTrafficControl(storages []*cluster.Instance, r cluster.Runner, loopTimes int, timeToDisturb, timeToRecover time.Duration, device, delay, dist string, loss, duplicate int) *action.Action {
	var picked *cluster.Instance
	disturb := func(ctx context.Context) (action.ResultCode, error) {
		picked = pick(storages)
		cmd := fmt.Sprintf("tcset %s --delay %s --delay-distro %s --loss %d%% --duplicate %d%%", device, delay, dist, loss, duplicate)
		if _, _, err := r.Run(ctx, cmd, picked.Host, nil, nil, picked.Owner); err != nil {
			return action.ErrFailed, err
		}
		return action.OK, nil
	}
	recover := func(ctx context.Context) (action.ResultCode, error) {
		cmd := "tcdel " + device + " --all"
		if _, _, err := r.Run(ctx, cmd, picked.Host, nil, nil, picked.Owner); err != nil {
			return action.ErrFailed, err
		}
		return action.OK, nil
	}
	return action.NewDisturb(fmt.Sprintf("Random traffic control: loop %d delay %s +/- %s", loopTimes, delay, dist), loopTimes, timeToDisturb, timeToRecover, disturb, recover)
}

// FillDisk writes count 1GiB files under a randomly chosen storage
// instance's data directory, then removes them. Grounded on
// FillDiskAction.
func FillDisk(storages []*cluster.Instance, r cluster.Runner, loopTimes int, timeToDisturb, timeToRecover time.Duration, count int) *action.Action {
	var picked *cluster.Instance
	disturb := func(ctx context.Context) (action.ResultCode, error) {
		picked = pick(storages)
		cmd := fmt.Sprintf("for i in $(seq 1 %d); do dd if=/dev/zero of=%s/fill_$i bs=1M count=1024; done", count, picked.DataDir())
		if _, _, err := r.Run(ctx, cmd, picked.Host, nil, nil, picked.Owner); err != nil {
			return action.ErrFailed, err
		}
		return action.OK, nil
	}
	recover := func(ctx context.Context) (action.ResultCode, error) {
		cmd := "rm -f " + picked.DataDir() + "/fill_*"
		if _, _, err := r.Run(ctx, cmd, picked.Host, nil, nil, picked.Owner); err != nil {
			return action.ErrFailed, err
		}
		return action.OK, nil
	}
	return action.NewDisturb(fmt.Sprintf("Fill disk: loop %d", loopTimes), loopTimes, timeToDisturb, timeToRecover, disturb, recover)
}

// SlowDisk injects an I/O delay on the major:minor block device of a
// randomly chosen storage instance using the kernel's device-mapper delay
// target, then removes it. Grounded on SlowDiskAction.
func SlowDisk(storages []*cluster.Instance, r cluster.Runner, loopTimes int, timeToDisturb, timeToRecover time.Duration, major, minor, delayMs int) *action.Action {
	var picked *cluster.Instance
	disturb := func(ctx context.Context) (action.ResultCode, error) {
		picked = pick(storages)
		cmd := fmt.Sprintf("echo '0 $(blockdev --getsz /dev/block/%d:%d) delay /dev/block/%d:%d 0 %d' | dmsetup create slowdisk", major, minor, major, minor, delayMs)
		if _, _, err := r.Run(ctx, cmd, picked.Host, nil, nil, picked.Owner); err != nil {
			return action.ErrFailed, err
		}
		return action.OK, nil
	}
	recover := func(ctx context.Context) (action.ResultCode, error) {
		if _, _, err := r.Run(ctx, "dmsetup remove slowdisk", picked.Host, nil, nil, picked.Owner); err != nil {
			return action.ErrFailed, err
		}
		return action.OK, nil
	}
	return action.NewDisturb(fmt.Sprintf("Slow disk: loop %d", loopTimes), loopTimes, timeToDisturb, timeToRecover, disturb, recover)
}

// TruncateWal cuts every file in inst's wal directory for spaceID down to a
// random length below its current size, simulating a torn write. It acts
// on the given instance only, does not single out the latest wal file,
// takes no byte count, and does not restart the instance afterwards. It is
// a CleanWal-adjacent plain Action rather than a DisturbAction since it
// runs once, not in a disturb/recover loop.
func TruncateWal(inst *cluster.Instance, r cluster.Runner, spaceID int64) *action.Action {
	return action.New(fmt.Sprintf("truncate wal space %d on %s", spaceID, inst), func(ctx context.Context) (action.ResultCode, error) {
		cmd := fmt.Sprintf("for f in %s/*; do truncate -s $((RANDOM %% $(stat -c%%s \"$f\"))) \"$f\"; done", inst.WalDir(spaceID))
		if _, _, err := r.Run(ctx, cmd, inst.Host, nil, nil, inst.Owner); err != nil {
			return action.ErrFailed, err
		}
		return action.OK, nil
	})
}
