package expr

import "sync"

// Context is the per-plan shared mutable variable map the expression
// language and assign actions read and write. A single Context instance is
// shared across every action belonging to one plan; mutation points
// are explicit assign actions and the small number of concrete actions that
// store a derived result (e.g. leader distribution) under a caller-chosen
// name.
//
// Concurrent writers to the same variable may race; the only guarantee
// this type provides is that the backing map itself is not corrupted by
// concurrent access — it is the plan author's responsibility to avoid two
// concurrently running actions assigning the same variable.
type Context struct {
	mu   sync.RWMutex
	vars map[string]Value
}

// NewContext returns an empty context, ready for use by one plan.
func NewContext() *Context {
	return &Context{vars: make(map[string]Value)}
}

// Get looks up name. ok is false if the variable was never assigned.
func (c *Context) Get(name string) (Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vars[name]
	return v, ok
}

// Set stores value under name, overwriting any previous value.
func (c *Context) Set(name string, value Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vars[name] = value
}
