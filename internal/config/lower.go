package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vesoft-chaos/orchestrator/internal/action"
	"github.com/vesoft-chaos/orchestrator/internal/actions"
	"github.com/vesoft-chaos/orchestrator/internal/cluster"
	"github.com/vesoft-chaos/orchestrator/internal/dbclient"
	"github.com/vesoft-chaos/orchestrator/internal/expr"
	"github.com/vesoft-chaos/orchestrator/internal/plan"
)

// Env bundles the collaborators a validated PlanDocument is lowered
// against: the query client and remote runner are supplied by the caller
// (CLI wiring) rather than constructed here, keeping this package free of
// any concrete transport dependency beyond the interfaces it already
// imports.
type Env struct {
	Client   dbclient.Client
	Runner   cluster.Runner
	Notifier plan.Notifier
}

// Lower builds a plan.Plan from doc: materializes one cluster.Instance per
// InstanceConfig, then walks doc.Actions in order building one
// action.Action per entry and wiring its dependencies against
// already-built actions (indices must reference strictly-earlier
// declarations — already enforced by Validate before Lower is ever
// called).
func Lower(doc *PlanDocument, env Env) (*plan.Plan, []*cluster.Instance, error) {
	instances := make([]*cluster.Instance, len(doc.Instances))
	for i, ic := range doc.Instances {
		instances[i] = cluster.New(ic.Host, ic.InstallDir, cluster.ParseRole(ic.Type), ic.ConfDir, ic.User)
	}

	ectx := expr.NewContext()
	p := plan.New(doc.Name, doc.Concurrency, doc.Email, env.Notifier)

	built := make([]*action.Action, len(doc.Actions))
	for i, ac := range doc.Actions {
		a, err := buildAction(ac, instances, ectx, env)
		if err != nil {
			return nil, nil, fmt.Errorf("action %d (%s): %w", i, ac.Type, err)
		}
		for _, dep := range ac.Depends {
			built[dep].AddDependency(a)
		}
		built[i] = a
		p.Add(a)
	}
	return p, instances, nil
}

func instanceAt(instances []*cluster.Instance, idx int) (*cluster.Instance, error) {
	if idx < 0 || idx >= len(instances) {
		return nil, fmt.Errorf("instance index %d out of range (have %d instances)", idx, len(instances))
	}
	return instances[idx], nil
}

func instancesAt(instances []*cluster.Instance, idxs []int) ([]*cluster.Instance, error) {
	out := make([]*cluster.Instance, 0, len(idxs))
	for _, idx := range idxs {
		inst, err := instanceAt(instances, idx)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// buildAction dispatches on ac.Type to the matching internal/actions
// constructor. Every payload struct below mirrors one concrete action's
// constructor parameters from internal/actions.
func buildAction(ac ActionConfig, instances []*cluster.Instance, ectx *expr.Context, env Env) (*action.Action, error) {
	switch ac.Type {
	case "connect":
		var p struct {
			User, Password string
			RetryTimes     int
		}
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		return actions.ClientConnect(env.Client, p.User, p.Password, defaultInt(p.RetryTimes, 32)), nil

	case "create_space":
		var p struct {
			SpaceName         string
			Replica, Parts    int
			RetryTimes        int
		}
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		return actions.CreateSpace(env.Client, p.SpaceName, defaultInt(p.Replica, 3), defaultInt(p.Parts, 100), defaultInt(p.RetryTimes, 32)), nil

	case "use_space":
		var p struct {
			SpaceName  string
			RetryTimes int
		}
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		return actions.UseSpace(env.Client, p.SpaceName, defaultInt(p.RetryTimes, 32)), nil

	case "balance_leader":
		var p struct{ RetryTimes int }
		decodePayload(ac.Payload, &p)
		return actions.BalanceLeader(env.Client, defaultInt(p.RetryTimes, 32)), nil

	case "balance_data":
		var p struct{ RetryTimes int }
		decodePayload(ac.Payload, &p)
		return actions.BalanceData(env.Client, defaultInt(p.RetryTimes, 32)), nil

	case "desc_space":
		var p struct {
			SpaceName, ResultVar string
			RetryTimes           int
		}
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		return actions.DescSpace(env.Client, ectx, p.SpaceName, p.ResultVar, defaultInt(p.RetryTimes, 32)), nil

	case "check_leaders":
		var p struct {
			SpaceName   string
			ExpectedNum int64
			ResultVar   string
			RetryTimes  int
		}
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		return actions.CheckLeaders(env.Client, ectx, p.SpaceName, p.ExpectedNum, p.ResultVar, defaultInt(p.RetryTimes, 32)), nil

	case "update_configs":
		var p struct {
			Layer, Name, Value string
			RetryTimes         int
		}
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		return actions.UpdateConfigs(env.Client, p.Layer, p.Name, p.Value, defaultInt(p.RetryTimes, 32)), nil

	case "compaction":
		var p struct{ RetryTimes int }
		decodePayload(ac.Payload, &p)
		return actions.Compaction(env.Client, defaultInt(p.RetryTimes, 32)), nil

	case "create_snapshot":
		var p struct{ RetryTimes int }
		decodePayload(ac.Payload, &p)
		return actions.CreateSnapshot(env.Client, defaultInt(p.RetryTimes, 32)), nil

	case "write_circle":
		var p struct {
			Tag, Col         string
			TotalRows        uint64
			BatchNum         uint32
			Tries            int
		}
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		return actions.WriteCircle(env.Client, p.Tag, p.Col, p.TotalRows, defaultUint32(p.BatchNum, 1), defaultInt(p.Tries, 32)), nil

	case "walk_through":
		var p struct {
			Tag, Col  string
			TotalRows uint64
			Tries     int
		}
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		return actions.WalkThrough(env.Client, p.Tag, p.Col, p.TotalRows, defaultInt(p.Tries, 32)), nil

	case "start":
		inst, err := payloadInstance(ac.Payload, instances)
		if err != nil {
			return nil, err
		}
		return actions.Start(inst, env.Runner), nil

	case "stop":
		inst, err := payloadInstance(ac.Payload, instances)
		if err != nil {
			return nil, err
		}
		return actions.Stop(inst, env.Runner), nil

	case "crash":
		inst, err := payloadInstance(ac.Payload, instances)
		if err != nil {
			return nil, err
		}
		return actions.Crash(inst, env.Runner), nil

	case "clean_wal":
		var p struct {
			Instance int
			SpaceID  int64
		}
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		inst, err := instanceAt(instances, p.Instance)
		if err != nil {
			return nil, err
		}
		return actions.CleanWal(inst, env.Runner, p.SpaceID), nil

	case "clean_data":
		var p struct {
			Instance int
			SpaceID  int64
		}
		p.SpaceID = -1
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		inst, err := instanceAt(instances, p.Instance)
		if err != nil {
			return nil, err
		}
		return actions.CleanData(inst, env.Runner, p.SpaceID), nil

	case "clean_checkpoint":
		inst, err := payloadInstance(ac.Payload, instances)
		if err != nil {
			return nil, err
		}
		return actions.CleanCheckpoint(inst, env.Runner), nil

	case "restore_checkpoint":
		inst, err := payloadInstance(ac.Payload, instances)
		if err != nil {
			return nil, err
		}
		return actions.RestoreFromCheckpoint(inst, env.Runner), nil

	case "restore_datadir":
		var p struct {
			Instance    int
			SrcDataPath string
		}
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		inst, err := instanceAt(instances, p.Instance)
		if err != nil {
			return nil, err
		}
		return actions.RestoreFromDataDir(inst, env.Runner, p.SrcDataPath), nil

	case "random_restart":
		var p struct {
			Instances                   []int
			LoopTimes                   int
			TimeToDisturb, TimeToRecover int
			Graceful, CleanData         bool
		}
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		targets, err := instancesAt(instances, p.Instances)
		if err != nil {
			return nil, err
		}
		return actions.RandomRestart(targets, env.Runner, p.LoopTimes, time.Duration(p.TimeToDisturb)*time.Second, time.Duration(p.TimeToRecover)*time.Second, p.Graceful, p.CleanData), nil

	case "random_partition":
		var p struct {
			Metas, Storages             []int
			LoopTimes                   int
			TimeToDisturb, TimeToRecover int
		}
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		metas, err := instancesAt(instances, p.Metas)
		if err != nil {
			return nil, err
		}
		storages, err := instancesAt(instances, p.Storages)
		if err != nil {
			return nil, err
		}
		return actions.RandomPartition(metas, storages, env.Runner, p.LoopTimes, time.Duration(p.TimeToDisturb)*time.Second, time.Duration(p.TimeToRecover)*time.Second), nil

	case "random_traffic_control":
		var p struct {
			Storages                     []int
			LoopTimes                    int
			TimeToDisturb, TimeToRecover int
			Device, Delay, Dist          string
			Loss, Duplicate              int
		}
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		storages, err := instancesAt(instances, p.Storages)
		if err != nil {
			return nil, err
		}
		return actions.RandomTrafficControl(storages, env.Runner, p.LoopTimes, time.Duration(p.TimeToDisturb)*time.Second, time.Duration(p.TimeToRecover)*time.Second, p.Device, p.Delay, p.Dist, p.Loss, p.Duplicate), nil

	case "fill_disk":
		var p struct {
			Storages                     []int
			LoopTimes                    int
			TimeToDisturb, TimeToRecover int
			Count                        int
		}
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		storages, err := instancesAt(instances, p.Storages)
		if err != nil {
			return nil, err
		}
		return actions.FillDisk(storages, env.Runner, p.LoopTimes, time.Duration(p.TimeToDisturb)*time.Second, time.Duration(p.TimeToRecover)*time.Second, p.Count), nil

	case "slow_disk":
		var p struct {
			Storages                     []int
			LoopTimes                    int
			TimeToDisturb, TimeToRecover int
			Major, Minor, DelayMs        int
		}
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		storages, err := instancesAt(instances, p.Storages)
		if err != nil {
			return nil, err
		}
		return actions.SlowDisk(storages, env.Runner, p.LoopTimes, time.Duration(p.TimeToDisturb)*time.Second, time.Duration(p.TimeToRecover)*time.Second, p.Major, p.Minor, p.DelayMs), nil

	case "truncate_wal":
		var p struct {
			Instance int
			SpaceID  int64
		}
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		inst, err := instanceAt(instances, p.Instance)
		if err != nil {
			return nil, err
		}
		return actions.TruncateWal(inst, env.Runner, p.SpaceID), nil

	case "loop":
		var p struct {
			Condition   string
			Concurrency int
			Actions     []ActionConfig
		}
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		if err := checkDependsIndices(p.Actions); err != nil {
			return nil, fmt.Errorf("loop body: %w", err)
		}
		sub := make([]*action.Action, len(p.Actions))
		for i, sac := range p.Actions {
			sa, err := buildAction(sac, instances, ectx, env)
			if err != nil {
				return nil, fmt.Errorf("loop body action %d (%s): %w", i, sac.Type, err)
			}
			for _, dep := range sac.Depends {
				sub[dep].AddDependency(sa)
			}
			sub[i] = sa
		}
		return action.NewLoop(ectx, p.Condition, sub, defaultInt(p.Concurrency, 10)), nil

	case "empty":
		var p struct{ Name string }
		decodePayload(ac.Payload, &p)
		return actions.Empty(defaultStr(p.Name, "empty")), nil

	case "wait":
		var p struct{ Seconds int }
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		return actions.Wait(time.Duration(p.Seconds) * time.Second), nil

	case "assign":
		var p struct{ Var, Expr string }
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		return actions.Assign(ectx, p.Var, p.Expr), nil

	case "execution_expression":
		var p struct{ Condition string }
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		return actions.ExecutionExpression(ectx, p.Condition), nil

	case "send_email":
		var p struct{ Recipient, Subject, Body string }
		if err := decodePayload(ac.Payload, &p); err != nil {
			return nil, err
		}
		return actions.SendEmail(env.Notifier, p.Recipient, p.Subject, p.Body), nil

	default:
		return nil, fmt.Errorf("unknown action type %q", ac.Type)
	}
}

func payloadInstance(raw json.RawMessage, instances []*cluster.Instance) (*cluster.Instance, error) {
	var p struct{ Instance int }
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	return instanceAt(instances, p.Instance)
}

func defaultInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

func defaultUint32(v, fallback uint32) uint32 {
	if v == 0 {
		return fallback
	}
	return v
}

func defaultStr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
