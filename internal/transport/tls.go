package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// TLSDialer wraps connections from Base in a TLS client session.  With
// a nil Base it dials plain TCP itself, so it can also sit on top of an
// SSHDialer.
type TLSDialer struct {
	Base    Dialer
	Timeout time.Duration // bounds dial + handshake
	Config  *tls.Config   // optional; ServerName defaults to the host
}

func (d *TLSDialer) base() Dialer {
	if d.Base != nil {
		return d.Base
	}
	return &TCPDialer{Timeout: d.Timeout}
}

// Dial connects through Base and completes the TLS handshake.
func (d *TLSDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	raw, err := d.base().Dial(ctx, network, address)
	if err != nil {
		return nil, err
	}

	cfg := &tls.Config{}
	if d.Config != nil {
		cfg = d.Config.Clone()
	}
	if cfg.ServerName == "" {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			raw.Close()
			return nil, fmt.Errorf("tls: %w", err)
		}
		cfg.ServerName = host
	}
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}

	tc := tls.Client(raw, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", address, err)
	}
	return tc, nil
}

// Close releases the base dialer.
func (d *TLSDialer) Close() error {
	if d.Base != nil {
		return d.Base.Close()
	}
	return nil
}
