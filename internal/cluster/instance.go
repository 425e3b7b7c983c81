// Package cluster models the remote targets chaos actions operate against:
// graph database instances reachable over SSH.
package cluster

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Role is the kind of process an Instance runs.
type Role int

const (
	RoleUnknown Role = iota
	RoleStorage
	RoleMeta
	RoleGraph
)

func (r Role) String() string {
	switch r {
	case RoleStorage:
		return "storage"
	case RoleMeta:
		return "meta"
	case RoleGraph:
		return "graph"
	default:
		return "unknown"
	}
}

// ParseRole maps the plan document's instance type strings onto a Role.
func ParseRole(s string) Role {
	switch strings.ToLower(s) {
	case "storaged", "storage":
		return RoleStorage
	case "metad", "meta":
		return RoleMeta
	case "graphd", "graph":
		return RoleGraph
	default:
		return RoleUnknown
	}
}

// State is the last-observed process state of an Instance.
type State int

const (
	StateUnknown State = iota
	StateRunning
	StateStopped
)

// Instance is an immutable description of one remote target plus the small
// amount of mutable state start/stop/crash actions update: a cached pid and
// a best-effort last-known State. Config is the derived key->value map
// parsed from the instance's remote text config file.
type Instance struct {
	Host        string
	InstallPath string
	Role        Role
	ConfigPath  string
	Owner       string

	mu     sync.Mutex
	pid    int
	state  State
	config map[string]string
}

// New builds an Instance; Config is empty until LoadConfig is called.
func New(host, installPath string, role Role, configPath, owner string) *Instance {
	return &Instance{
		Host:        host,
		InstallPath: installPath,
		Role:        role,
		ConfigPath:  configPath,
		Owner:       owner,
		state:       StateUnknown,
	}
}

func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

func (i *Instance) SetState(s State) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = s
}

func (i *Instance) CachedPID() (int, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.pid, i.pid > 0
}

func (i *Instance) setCachedPID(pid int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.pid = pid
}

// LoadConfig parses raw (the contents of ConfigPath, fetched by the caller
// over SFTP) as a flat "key = value" text file, one setting per line,
// matching the role-specific config layout NebulaInstance::parseConf reads.
func (i *Instance) LoadConfig(raw string) {
	cfg := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		cfg[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	i.mu.Lock()
	i.config = cfg
	i.mu.Unlock()
}

func (i *Instance) ConfigValue(key string) (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	v, ok := i.config[key]
	return v, ok
}

func (i *Instance) ConfigInt(key string) (int, bool) {
	v, ok := i.ConfigValue(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (i *Instance) Port() (int, bool) { return i.ConfigInt("port") }

func (i *Instance) String() string {
	if port, ok := i.Port(); ok {
		return fmt.Sprintf("%s:%d", i.Host, port)
	}
	return i.Host
}

func (i *Instance) binaryName() string {
	switch i.Role {
	case RoleStorage:
		return "nebula-storaged"
	case RoleMeta:
		return "nebula-metad"
	case RoleGraph:
		return "nebula-graphd"
	default:
		return "nebula"
	}
}

func (i *Instance) pidFile() string {
	return fmt.Sprintf("%s/pids/%s.pid", i.InstallPath, i.binaryName())
}

// StartCommand, StopCommand and KillCommand build the shell commands the
// remote-command facility runs over SSH for process lifecycle actions.
func (i *Instance) StartCommand() string {
	return fmt.Sprintf("%s/scripts/%s.service start", i.InstallPath, i.binaryName())
}

func (i *Instance) StopCommand() string {
	return fmt.Sprintf("%s/scripts/%s.service stop", i.InstallPath, i.binaryName())
}

func (i *Instance) KillCommand() string {
	return fmt.Sprintf("kill -9 $(cat %s)", i.pidFile())
}

// Runner is the narrow remote-command boundary Instance
// methods that probe process liveness depend on; the production
// implementation is internal/remote's SSH runner.
type Runner interface {
	Run(ctx context.Context, command, host string, onStdout, onStderr func(string), owner string) (exitCode int, duration time.Duration, err error)
}

// GetPID reads the pid file over the runner and verifies the process is
// alive with `ps -p`, caching the result the way
// NebulaInstance::getPid(skipCache=true) does.
func (i *Instance) GetPID(ctx context.Context, r Runner) (int, bool) {
	var out strings.Builder
	_, _, err := r.Run(ctx, "cat "+i.pidFile(), i.Host, func(s string) { out.WriteString(s) }, nil, i.Owner)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(out.String()))
	if err != nil {
		return 0, false
	}
	code, _, err := r.Run(ctx, fmt.Sprintf("ps -p %d > /dev/null", pid), i.Host, nil, nil, i.Owner)
	if err != nil || code != 0 {
		return 0, false
	}
	i.setCachedPID(pid)
	return pid, true
}

// DataDir and WalDir mirror the install-path-relative layout the disk and
// WAL management actions shell out against.
func (i *Instance) DataDir() string { return i.InstallPath + "/data" }

func (i *Instance) WalDir(spaceID int64) string {
	return fmt.Sprintf("%s/nebula/%d/wal", i.DataDir(), spaceID)
}

func (i *Instance) SpaceDataDir(spaceID int64) string {
	return fmt.Sprintf("%s/nebula/%d", i.DataDir(), spaceID)
}
