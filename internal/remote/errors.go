package remote

import "fmt"

// TransportError wraps a failure from an SSH/SFTP call with enough shape
// for callers (and the circuit breaker) to tell a transient network blip
// apart from a permanent misconfiguration. Grounded on
// pkg/transports/ssh/errors.go's TransportError.
type TransportError struct {
	Op          string
	Host        string
	Err         error
	IsTemporary bool
	IsAuthError bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("remote %s on %s: %v", e.Op, e.Host, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the same command later is worth it.
func (e *TransportError) Temporary() bool { return e.IsTemporary }
