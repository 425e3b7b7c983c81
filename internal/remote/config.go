// Package remote implements the remote-command facility: SSH command
// execution with captured stdout/stderr, plus SFTP
// file reads for fetching a remote target's config file. Grounded on
// pkg/transports/ssh/{config.go,ssh_client.go,executor.go,transport.go}.
package remote

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
)

// AuthMethod selects how a Config authenticates to a host.
type AuthMethod string

const (
	AuthPassword AuthMethod = "password"
	AuthKey      AuthMethod = "key"
)

// Config holds the connection parameters for one remote target.
type Config struct {
	Port                  int
	User                  string
	AuthMethod            AuthMethod
	Password              string
	PrivateKeyPath        string
	StrictHostKeyChecking bool
	ConnectTimeout        time.Duration
	CommandTimeout        time.Duration
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = 22
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = 60 * time.Second
	}
	return c
}

func (c Config) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	switch c.AuthMethod {
	case AuthKey:
		key, err := os.ReadFile(c.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	default:
		auth = []ssh.AuthMethod{ssh.Password(c.Password)}
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	cfg := &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.ConnectTimeout,
	}
	return cfg, nil
}
