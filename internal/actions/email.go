package actions

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/vesoft-chaos/orchestrator/internal/action"
	"github.com/vesoft-chaos/orchestrator/internal/plan"
)

// MailNotifier implements plan.Notifier by shelling out to the host's
// `mail` binary, attachment included via `-a` when set. Grounded on
// SendEmailAction::doRun; there is no mail-sending library anywhere in the
// example corpus, so this stays on os/exec plus the same local MTA the
// source relied on rather than inventing a dependency.
type MailNotifier struct {
	Attachment string
}

func (m MailNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	args := []string{"-s", subject}
	if m.Attachment != "" {
		args = append(args, "-a", m.Attachment)
	}
	args = append(args, recipient)

	cmd := exec.CommandContext(ctx, "mail", args...)
	cmd.Stdin = bytes.NewBufferString(body)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("mail to %s: %w: %s", recipient, err, stderr.String())
	}
	return nil
}

// SendEmail delivers subject/body to recipient via notifier as a standalone
// action, for plans that want a notification mid-run rather than only at
// the final report. Grounded on SendEmailAction, generalized over
// plan.Notifier instead of a hardcoded subprocess call.
func SendEmail(notifier plan.Notifier, recipient, subject, body string) *action.Action {
	return action.New(fmt.Sprintf("Send e-mail to %s", recipient), func(ctx context.Context) (action.ResultCode, error) {
		if err := notifier.Send(ctx, recipient, subject, body); err != nil {
			return action.ErrFailed, err
		}
		return action.OK, nil
	})
}
