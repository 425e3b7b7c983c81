package plan

import "context"

// Notifier delivers a finished plan's report to a recipient — the e-mail
// boundary concern best kept pluggable. A production implementation
// shells out to a local `mail` binary; tests may substitute a fake.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// NoopNotifier discards reports; used when a plan has no configured
// recipient.
type NoopNotifier struct{}

func (NoopNotifier) Send(context.Context, string, string, string) error { return nil }
