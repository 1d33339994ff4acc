package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, .env parsing, and environment variable loading.

const (
	// DefaultHost is Twitch's IRC chat gateway.
	DefaultHost = "irc.chat.twitch.tv"

	// DefaultPort is the plain-text IRC port.
	DefaultPort = 6667

	// DefaultTLSPort is the TLS IRC port.
	DefaultTLSPort = 6697

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultIdleTimeout closes the session when the server has sent
	// nothing for this long.  Twitch pings roughly every five minutes.
	DefaultIdleTimeout = 10 * time.Minute

	// DefaultConnTimeout bounds the TCP/TLS/SSH connection attempt.
	DefaultConnTimeout = 30 * time.Second

	// DefaultRate is the command budget per window for moderators and
	// the broadcaster.
	DefaultRate = 100

	// UserRate is the command budget per window for regular accounts.
	UserRate = 20

	// DefaultRateWindow is the length of one rate-limit window.
	DefaultRateWindow = 30 * time.Second

	// DefaultPingTarget is the argument of Twitch's keep-alive PING.
	DefaultPingTarget = "tmi.twitch.tv"

	// DefaultRecvBufSize is the per-read buffer size.
	DefaultRecvBufSize = 4096

	// DefaultConnectAttempts disables connect retries.
	DefaultConnectAttempts = 1

	// DefaultEnvFile is read when present and --env-file is not given.
	DefaultEnvFile = ".env"

	// AnonymousUsername and AnonymousCredential log in read-only.
	AnonymousUsername   = "justinfan1234321"
	AnonymousCredential = "oauth:99999"

	// LimiterWindow and LimiterBucket select the rate limiter.
	LimiterWindow = "window"
	LimiterBucket = "bucket"
)
