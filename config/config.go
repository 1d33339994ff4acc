// Package config defines the runtime configuration for rawtwitch and
// provides helpers for parsing channel lists, credentials and tunnel
// specifications.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ncerr "rawtwitch/internal/errors"
	"rawtwitch/util"
)

// Config holds every tuneable for a single chat session.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	Host        string
	Port        int // 0 → DefaultPort, or DefaultTLSPort with TLS
	TLS         bool
	ConnTimeout time.Duration
	IdleTimeout time.Duration

	// ConnectAttempts is the total number of dial tries (1 = no retry).
	ConnectAttempts int

	// ── Login ────────────────────────────────────────────────────────
	Username   string
	Credential string // oauth token, normalised to "oauth:<token>"
	Anonymous  bool

	// ── Session ──────────────────────────────────────────────────────
	Channels            []string
	RequestCapabilities bool
	PingTarget          string

	// ── Rate limiting ────────────────────────────────────────────────
	Rate       int
	RateWindow time.Duration
	Limiter    string // LimiterWindow or LimiterBucket

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Output ───────────────────────────────────────────────────────
	RawOutput      bool   // print lines verbatim instead of formatted chat
	ShowMembership bool   // print JOIN/PART in formatted output
	Execute        string // pipe lines into this program (-e)
	Command        string // pipe lines into this shell command
	EnvFile        string
	Verbose        int
}

// Default returns a Config populated with the package defaults.
func Default() *Config {
	return &Config{
		Host:                DefaultHost,
		ConnTimeout:         DefaultConnTimeout,
		IdleTimeout:         DefaultIdleTimeout,
		ConnectAttempts:     DefaultConnectAttempts,
		RequestCapabilities: true,
		PingTarget:          DefaultPingTarget,
		Rate:                DefaultRate,
		RateWindow:          DefaultRateWindow,
		Limiter:             LimiterWindow,
		Verbose:             1,
	}
}

// EffectivePort resolves a zero Port to the default for the transport.
func (c *Config) EffectivePort() int {
	if c.Port != 0 {
		return c.Port
	}
	if c.TLS {
		return DefaultTLSPort
	}
	return DefaultPort
}

// Address returns the chat gateway as "host:port".
func (c *Config) Address() string {
	return util.FormatAddr(c.Host, c.EffectivePort())
}

// ApplyAnonymous fills in the read-only login when Anonymous is set and
// no explicit login was supplied.
func (c *Config) ApplyAnonymous() {
	if !c.Anonymous {
		return
	}
	if c.Username == "" {
		c.Username = AnonymousUsername
	}
	if c.Credential == "" {
		c.Credential = AnonymousCredential
	}
}

// ── Credential / channel helpers ─────────────────────────────────────

const oauthPrefix = "oauth:"

// NormalizeCredential makes sure the token carries the "oauth:" prefix
// Twitch expects in PASS.  Empty input stays empty.
func NormalizeCredential(token string) string {
	token = strings.TrimSpace(token)
	if token == "" || strings.HasPrefix(token, oauthPrefix) {
		return token
	}
	return oauthPrefix + token
}

// ParseChannels splits a comma-separated list such as "#Alpha, beta"
// into lower-cased channel names without the leading '#'.  Duplicates
// are dropped; first-seen order is preserved.
func ParseChannels(list string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(list, ",") {
		name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(part), "#"))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// channelRe matches Twitch login names, which double as channel names.
var channelRe = regexp.MustCompile(`^[a-z0-9_]{1,25}$`)

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
// The host excludes "@" so "user@" cannot match as a bare host.
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^@:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Failures are reported as *errors.ConfigError.
func (c *Config) Validate() error {
	if c.Host == "" {
		return &ncerr.ConfigError{Field: "host", Message: "chat gateway host is required"}
	}
	if c.Port < 0 || c.Port > 65535 {
		return &ncerr.ConfigError{Field: "port", Value: c.Port, Message: "out of range 1-65535"}
	}
	if c.Username == "" {
		return &ncerr.ConfigError{
			Field:   "user",
			Message: "username is required",
			Hint:    "set RAWTWITCH_USERNAME, use --user, or log in read-only with --anonymous",
		}
	}
	if c.Credential == "" {
		return &ncerr.ConfigError{
			Field:   "oauth",
			Message: "oauth token is required",
			Hint:    "set RAWTWITCH_OAUTH or use --oauth",
		}
	}
	if len(c.Channels) == 0 {
		return &ncerr.ConfigError{
			Field:   "channel",
			Message: "at least one channel is required",
			Hint:    "use -c alpha,beta or set RAWTWITCH_CHANNELS",
		}
	}
	for _, ch := range c.Channels {
		if !channelRe.MatchString(ch) {
			return &ncerr.ConfigError{Field: "channel", Value: ch, Message: "not a valid channel name"}
		}
	}
	if c.IdleTimeout <= 0 {
		return &ncerr.ConfigError{Field: "idle-timeout", Value: c.IdleTimeout, Message: "must be positive"}
	}
	if c.Rate <= 0 {
		return &ncerr.ConfigError{
			Field:   "rate",
			Value:   c.Rate,
			Message: "must be positive",
			Hint:    fmt.Sprintf("use %d for regular accounts, %d for moderators", UserRate, DefaultRate),
		}
	}
	if c.RateWindow <= 0 {
		return &ncerr.ConfigError{Field: "rate-window", Value: c.RateWindow, Message: "must be positive"}
	}
	if c.Limiter != LimiterWindow && c.Limiter != LimiterBucket {
		return &ncerr.ConfigError{
			Field:   "limiter",
			Value:   c.Limiter,
			Message: "unknown limiter",
			Hint:    LimiterWindow + " or " + LimiterBucket,
		}
	}
	if c.PingTarget == "" {
		return &ncerr.ConfigError{Field: "ping-target", Message: "must not be empty"}
	}
	if c.ConnectAttempts < 1 {
		return &ncerr.ConfigError{Field: "connect-attempts", Value: c.ConnectAttempts, Message: "must be at least 1"}
	}
	if c.Execute != "" && c.Command != "" {
		return &ncerr.ConfigError{Field: "exec", Message: "--exec and --command are mutually exclusive"}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "tunnel", Message: "tunnel host is required"}
	}
	return nil
}
