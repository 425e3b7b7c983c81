package remote

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/crypto/ssh"
)

// Runner executes shell commands against remote targets over SSH, caching
// one connection per host and wrapping each host's calls in its own
// circuit breaker so a single unreachable node can't starve the worker
// pool with repeated dial timeouts. Grounded on
// pkg/transports/ssh/ssh_client.go's SSHClient plus a new per-host
// gobreaker.CircuitBreaker, following jordigilh-kubernaut's
// shared/circuitbreaker usage.
type Runner struct {
	config Config

	mu       sync.Mutex
	conns    map[string]*ssh.Client
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewRunner builds a Runner that dials hosts lazily on first use.
func NewRunner(cfg Config) *Runner {
	return &Runner{
		config:   cfg.withDefaults(),
		conns:    make(map[string]*ssh.Client),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (r *Runner) breakerFor(host string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[host]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("host", name).Str("from", from.String()).Str("to", to.String()).Msg("remote circuit breaker state change")
		},
	})
	r.breakers[host] = b
	return b
}

func (r *Runner) clientFor(host string) (*ssh.Client, error) {
	r.mu.Lock()
	if c, ok := r.conns[host]; ok {
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	clientCfg, err := r.config.clientConfig()
	if err != nil {
		return nil, &TransportError{Op: "dial", Host: host, Err: err, IsAuthError: true}
	}
	addr := fmt.Sprintf("%s:%d", host, r.config.Port)
	c, err := ssh.Dial("tcp", addr, clientCfg)
	if err != nil {
		return nil, &TransportError{Op: "dial", Host: host, Err: err, IsTemporary: true}
	}

	r.mu.Lock()
	r.conns[host] = c
	r.mu.Unlock()
	return c, nil
}

func (r *Runner) dropClient(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[host]; ok {
		c.Close()
		delete(r.conns, host)
	}
}

// Run executes command on host, streaming each completed line of stdout
// and stderr to the caller-supplied callbacks (either may be nil) and
// returning the exit code and wall-clock duration. owner is recorded only
// for logging, matching the source's per-action "run as" bookkeeping.
func (r *Runner) Run(ctx context.Context, command, host string, onStdout, onStderr func(string), owner string) (int, time.Duration, error) {
	start := time.Now()
	result, err := r.breakerFor(host).Execute(func() (interface{}, error) {
		return r.run(ctx, command, host, onStdout, onStderr)
	})
	duration := time.Since(start)
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return -1, duration, &TransportError{Op: "execute", Host: host, Err: err, IsTemporary: true}
		}
		return -1, duration, err
	}
	return result.(int), duration, nil
}

func (r *Runner) run(ctx context.Context, command, host string, onStdout, onStderr func(string)) (int, error) {
	client, err := r.clientFor(host)
	if err != nil {
		return -1, err
	}

	session, err := client.NewSession()
	if err != nil {
		r.dropClient(host)
		return -1, &TransportError{Op: "execute", Host: host, Err: fmt.Errorf("new session: %w", err), IsTemporary: true}
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	log.Debug().Str("host", host).Str("command", command).Msg("running remote command")

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	var runErr error
	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		runErr = ctx.Err()
	case runErr = <-done:
	}

	streamLines(stdoutBuf.String(), onStdout)
	streamLines(stderrBuf.String(), onStderr)

	if runErr == nil {
		return 0, nil
	}
	if exitErr, ok := runErr.(*ssh.ExitError); ok {
		return exitErr.ExitStatus(), nil
	}
	return -1, &TransportError{Op: "execute", Host: host, Err: runErr, IsTemporary: true}
}

func streamLines(s string, emit func(string)) {
	if emit == nil || s == "" {
		return
	}
	scanner := bufio.NewScanner(bytes.NewBufferString(s))
	for scanner.Scan() {
		emit(scanner.Text())
	}
}

// Close drops every cached connection.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for host, c := range r.conns {
		c.Close()
		delete(r.conns, host)
	}
}
