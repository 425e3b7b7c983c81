package remote

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/sftp"
)

// ReadFile fetches the contents of remotePath on host over SFTP, used to
// pull an Instance's config file before parsing it. Grounded on
// pkg/transports/ssh/file_transfer.go's downloadFile.
func (r *Runner) ReadFile(ctx context.Context, host, remotePath string) (string, error) {
	client, err := r.clientFor(host)
	if err != nil {
		return "", err
	}

	sc, err := sftp.NewClient(client)
	if err != nil {
		return "", &TransportError{Op: "sftp-open", Host: host, Err: fmt.Errorf("new sftp client: %w", err), IsTemporary: true}
	}
	defer sc.Close()

	f, err := sc.Open(remotePath)
	if err != nil {
		return "", &TransportError{Op: "sftp-read", Host: host, Err: fmt.Errorf("open %s: %w", remotePath, err), IsTemporary: false}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", &TransportError{Op: "sftp-read", Host: host, Err: fmt.Errorf("read %s: %w", remotePath, err), IsTemporary: true}
	}
	return string(data), nil
}
