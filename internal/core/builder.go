package core

import (
	"io"

	"rawtwitch/config"
	"rawtwitch/internal/metrics"
	"rawtwitch/internal/ratelimit"
	"rawtwitch/internal/retry"
	"rawtwitch/internal/session"
	"rawtwitch/internal/sink"
	"rawtwitch/internal/transport"
	"rawtwitch/util"
)

// Output carries the process's standard streams to the sinks.
type Output struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Build constructs a ChatMode from a validated configuration.  This is
// the single place that maps flags and environment onto components.
func Build(cfg *config.Config, out Output, logger *util.Logger) *ChatMode {
	return &ChatMode{
		Dialer:  buildDialer(cfg, logger),
		Address: cfg.Address(),
		Session: session.Config{
			Username:            cfg.Username,
			Credential:          cfg.Credential,
			Channels:            cfg.Channels,
			RequestCapabilities: cfg.RequestCapabilities,
			IdleTimeout:         cfg.IdleTimeout,
			PingTarget:          cfg.PingTarget,
			RecvBufSize:         config.DefaultRecvBufSize,
		},
		Limiter: buildLimiter(cfg),
		Sink:    buildSink(cfg, out, logger),
		Backoff: retry.Attempts(cfg.ConnectAttempts),
		Metrics: metrics.New(),
		Logger:  logger,
	}
}

// ── component builders ───────────────────────────────────────────────

// buildDialer layers the transports: SSH tunnel (or plain TCP) at the
// bottom, optionally wrapped in TLS.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	var d transport.Dialer = &transport.TCPDialer{Timeout: cfg.ConnTimeout}

	if cfg.TunnelEnabled {
		d = transport.NewSSHDialer(&transport.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.ConnTimeout,
		}, logger)
	}

	if cfg.TLS {
		d = &transport.TLSDialer{Base: d, Timeout: cfg.ConnTimeout}
	}
	return d
}

func buildLimiter(cfg *config.Config) ratelimit.Limiter {
	if cfg.Limiter == config.LimiterBucket {
		return ratelimit.NewTokenBucket(cfg.Rate, cfg.RateWindow, nil)
	}
	return ratelimit.NewFixedWindow(cfg.Rate, cfg.RateWindow, nil)
}

// buildSink selects what happens to forwarded lines.
func buildSink(cfg *config.Config, out Output, logger *util.Logger) session.Handler {
	switch {
	case cfg.Execute != "" || cfg.Command != "":
		return &sink.Exec{
			Program: cfg.Execute,
			Command: cfg.Command,
			Stdout:  out.Stdout,
			Stderr:  out.Stderr,
			Logger:  logger,
		}
	case cfg.RawOutput:
		return &sink.Raw{Out: out.Stdout}
	default:
		return &sink.Console{
			Out:            out.Stdout,
			ShowMembership: cfg.ShowMembership,
			ShowRaw:        cfg.Verbose >= 2,
		}
	}
}
