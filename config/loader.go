package config

// loader.go - configuration loading from environment variables and
// .env files.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. .env file  (this file, via godotenv)
//   4. Defaults   (defaults.go)

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the RAWTWITCH_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  Timeouts and windows
// are whole seconds.

// lookupFunc returns the value for key or "" when unset.
type lookupFunc func(key string) string

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	apply(cfg, os.Getenv)
}

// LoadDotEnv overlays the variables of a .env file onto cfg without
// touching the process environment.  A missing file is not an error
// when optional is true, which is how the implicit ./.env is read.
//
// Besides the RAWTWITCH_ keys, the bare "username", "oauth" and
// "channels" keys used by older bot .env files are understood.
func LoadDotEnv(cfg *Config, path string, optional bool) error {
	vars, err := godotenv.Read(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	apply(cfg, func(key string) string {
		if v := vars[key]; v != "" {
			return v
		}
		return vars[legacyKeys[key]]
	})
	return nil
}

// legacyKeys maps RAWTWITCH_ names to the lower-case .env names.
var legacyKeys = map[string]string{
	"RAWTWITCH_USERNAME": "username",
	"RAWTWITCH_OAUTH":    "oauth",
	"RAWTWITCH_CHANNELS": "channels",
}

func apply(cfg *Config, get lookupFunc) {
	// Connection
	if v := get("RAWTWITCH_HOST"); v != "" {
		cfg.Host = v
	}
	if v := lookupInt(get, "RAWTWITCH_PORT"); v > 0 {
		cfg.Port = v
	}
	if lookupBool(get, "RAWTWITCH_TLS") {
		cfg.TLS = true
	}
	if v := lookupInt(get, "RAWTWITCH_IDLE_TIMEOUT"); v > 0 {
		cfg.IdleTimeout = secondsDuration(v)
	}
	if v := lookupInt(get, "RAWTWITCH_CONNECT_TIMEOUT"); v > 0 {
		cfg.ConnTimeout = secondsDuration(v)
	}
	if v := lookupInt(get, "RAWTWITCH_CONNECT_ATTEMPTS"); v > 0 {
		cfg.ConnectAttempts = v
	}

	// Login
	if v := get("RAWTWITCH_USERNAME"); v != "" {
		cfg.Username = strings.TrimSpace(v)
	}
	if v := get("RAWTWITCH_OAUTH"); v != "" {
		cfg.Credential = NormalizeCredential(v)
	}
	if lookupBool(get, "RAWTWITCH_ANONYMOUS") {
		cfg.Anonymous = true
	}

	// Session
	if v := get("RAWTWITCH_CHANNELS"); v != "" {
		cfg.Channels = ParseChannels(v)
	}
	if lookupBool(get, "RAWTWITCH_NO_CAPS") {
		cfg.RequestCapabilities = false
	}
	if v := get("RAWTWITCH_PING_TARGET"); v != "" {
		cfg.PingTarget = v
	}

	// Rate limiting
	if v := lookupInt(get, "RAWTWITCH_RATE"); v > 0 {
		cfg.Rate = v
	}
	if v := lookupInt(get, "RAWTWITCH_RATE_WINDOW"); v > 0 {
		cfg.RateWindow = secondsDuration(v)
	}
	if v := get("RAWTWITCH_LIMITER"); v != "" {
		cfg.Limiter = strings.ToLower(v)
	}

	// SSH tunnel
	if v := get("RAWTWITCH_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := get("RAWTWITCH_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if lookupBool(get, "RAWTWITCH_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if lookupBool(get, "RAWTWITCH_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if lookupBool(get, "RAWTWITCH_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := get("RAWTWITCH_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if lookupBool(get, "RAWTWITCH_RAW") {
		cfg.RawOutput = true
	}
	if lookupBool(get, "RAWTWITCH_SHOW_MEMBERSHIP") {
		cfg.ShowMembership = true
	}
	if v := lookupInt(get, "RAWTWITCH_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func lookupInt(get lookupFunc, key string) int {
	v := get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}

func lookupBool(get lookupFunc, key string) bool {
	v := strings.ToLower(strings.TrimSpace(get(key)))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
