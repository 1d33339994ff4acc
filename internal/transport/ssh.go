package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "rawtwitch/internal/errors"
	"rawtwitch/util"
)

// SSHConfig holds everything needed to reach an SSH bastion.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration

	// Prompt reads passwords and key passphrases.  nil uses
	// util.PromptSecret.
	Prompt util.SecretPrompter
}

// SSHDialer routes connections through an SSH bastion.  The SSH session
// is established lazily on the first Dial and torn down on Close.
type SSHDialer struct {
	config *SSHConfig
	logger *util.Logger

	mu     sync.Mutex
	client *ssh.Client
}

// NewSSHDialer creates a dialer that forwards connections through the
// bastion described by cfg.
func NewSSHDialer(cfg *SSHConfig, logger *util.Logger) *SSHDialer {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	if cfg.Prompt == nil {
		cfg.Prompt = util.PromptSecret
	}
	return &SSHDialer{config: cfg, logger: logger}
}

// connect establishes the SSH session if not already connected.
func (d *SSHDialer) connect(ctx context.Context) (*ssh.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client != nil {
		return d.client, nil
	}

	authMethods, err := BuildAuthMethods(d.config)
	if err != nil {
		return nil, ncerr.WrapSSH("auth", d.config.Host, d.config.Port, err)
	}
	hkCallback, err := hostKeyCallback(d.config)
	if err != nil {
		return nil, ncerr.WrapSSH("hostkey", d.config.Host, d.config.Port, err)
	}

	addr := util.FormatAddr(d.config.Host, d.config.Port)
	d.logger.Verbose("establishing SSH tunnel to %s@%s", d.config.User, addr)

	// Use a context-aware TCP dial so callers can cancel.
	dialer := net.Dialer{Timeout: d.config.ConnTimeout}
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, ncerr.Wrap("dial", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, &ssh.ClientConfig{
		User:            d.config.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         d.config.ConnTimeout,
	})
	if err != nil {
		tcpConn.Close()
		return nil, ncerr.WrapSSH("handshake", d.config.Host, d.config.Port, err)
	}

	d.client = ssh.NewClient(sshConn, chans, reqs)
	d.logger.Verbose("SSH tunnel established")
	go d.monitor(d.client)
	return d.client, nil
}

// Dial connects to address through the bastion, establishing the SSH
// session on the first call.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	client, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("tunnel: dialing %s %s", network, address)
	conn, err := client.Dial(network, address)
	if err != nil {
		return nil, ncerr.WrapSSH("forward", d.config.Host, d.config.Port,
			fmt.Errorf("%s: %w", address, err))
	}
	return conn, nil
}

// Close tears down the SSH session.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}

// monitor forgets the client once the SSH connection drops so the next
// Dial reconnects.
func (d *SSHDialer) monitor(client *ssh.Client) {
	err := client.Wait()

	d.mu.Lock()
	if d.client == client {
		d.client = nil
	}
	d.mu.Unlock()

	if err != nil {
		d.logger.Debug("SSH tunnel closed: %v", err)
	} else {
		d.logger.Debug("SSH tunnel closed")
	}
}
