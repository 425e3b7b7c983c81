package dbclient

import (
	"context"
	"sync"
)

// Handler answers one Execute call given the submitted statement.
type Handler func(statement string) (ErrorCode, *DataSet, string, string)

// Fake is an in-memory Client used by tests and by the fake graph cluster
// demonstrated in examples: it keeps no real connection and answers
// Execute via a caller-supplied Handler (or a canned OK response with an
// empty DataSet if none is set), letting tests script multi-call
// sequences such as a retry-convergence scenario.
type Fake struct {
	mu        sync.Mutex
	connected bool
	handlers  []Handler
	calls     int
}

// NewFake builds a Fake that answers each successive Execute call with the
// next handler in order, repeating the last handler once the list is
// exhausted.
func NewFake(handlers ...Handler) *Fake {
	return &Fake{handlers: handlers}
}

func (f *Fake) Connect(ctx context.Context, user, password string) (ErrorCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return Succeeded, nil
}

func (f *Fake) Execute(ctx context.Context, statement string) (ErrorCode, *DataSet, string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return ErrDisconnected, nil, "not connected", "", nil
	}
	if len(f.handlers) == 0 {
		return Succeeded, &DataSet{}, "", "", nil
	}
	idx := f.calls
	if idx >= len(f.handlers) {
		idx = len(f.handlers) - 1
	}
	f.calls++
	code, ds, errMsg, space := f.handlers[idx](statement)
	return code, ds, errMsg, space, nil
}

func (f *Fake) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
