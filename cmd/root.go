// Package cmd wires up the CLI flags and runs a chat session.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"rawtwitch/config"
	"rawtwitch/internal/core"
	"rawtwitch/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X rawtwitch/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// options are the flags that do not map one-to-one onto Config.
type options struct {
	oauth       string
	channels    []string
	noCaps      bool
	userRate    bool
	showVersion bool
	showHelp    bool
	dryRun      bool
}

// newFlagSet binds every flag to cfg and o.  Flag defaults are the
// current values in cfg, so binding after the environment has been
// loaded makes flags override it.
func newFlagSet(cfg *config.Config, o *options) *flag.FlagSet {
	fs := flag.NewFlagSet("rawtwitch", flag.ContinueOnError)

	// ── login ────────────────────────────────────────────────────
	fs.StringVarP(&cfg.Username, "user", "u", cfg.Username, "Twitch login name")
	fs.StringVar(&o.oauth, "oauth", "", "OAuth token (\"oauth:\" prefix optional)")
	fs.BoolVar(&cfg.Anonymous, "anonymous", cfg.Anonymous, "Log in read-only without credentials")

	// ── session ──────────────────────────────────────────────────
	fs.StringSliceVarP(&o.channels, "channel", "c", nil, "Channel(s) to join, comma separated (repeatable)")
	fs.BoolVar(&o.noCaps, "no-caps", false, "Do not request the Twitch IRC capabilities")
	fs.StringVar(&cfg.PingTarget, "ping-target", cfg.PingTarget, "Keep-alive PING argument to answer")

	// ── connection ───────────────────────────────────────────────
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Chat gateway host")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Chat gateway port (default 6667, or 6697 with --tls)")
	fs.BoolVar(&cfg.TLS, "tls", cfg.TLS, "Connect with TLS")
	fs.DurationVar(&cfg.ConnTimeout, "connect-timeout", cfg.ConnTimeout, "Connection timeout")
	fs.DurationVarP(&cfg.IdleTimeout, "idle-timeout", "w", cfg.IdleTimeout, "Close after this long without server data")
	fs.IntVar(&cfg.ConnectAttempts, "connect-attempts", cfg.ConnectAttempts, "Dial attempts before giving up")

	// ── rate limiting ────────────────────────────────────────────
	fs.IntVar(&cfg.Rate, "rate", cfg.Rate, "Commands allowed per window")
	fs.BoolVar(&o.userRate, "user-rate", false, fmt.Sprintf("Use the regular-account budget (%d per window)", config.UserRate))
	fs.DurationVar(&cfg.RateWindow, "rate-window", cfg.RateWindow, "Rate-limit window")
	fs.StringVar(&cfg.Limiter, "limiter", cfg.Limiter, "Rate limiter: window or bucket")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "SSH tunnel via [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.BoolVar(&cfg.RawOutput, "raw", cfg.RawOutput, "Print protocol lines verbatim")
	fs.BoolVar(&cfg.ShowMembership, "show-membership", cfg.ShowMembership, "Print JOIN/PART events")
	fs.StringVarP(&cfg.Execute, "exec", "e", cfg.Execute, "Pipe received lines into a program")
	fs.StringVar(&cfg.Command, "command", cfg.Command, "Pipe received lines into a shell command")
	fs.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "Read settings from this .env file")
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable, adds to RAWTWITCH_VERBOSE)")

	fs.BoolVar(&o.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&o.showHelp, "help", "h", false, "Show this help")
	fs.BoolVar(&o.dryRun, "dry-run", false, "Validate the configuration and exit")

	fs.Usage = func() { printUsage(fs) }
	return fs
}

// Execute parses args and runs a chat session.
func Execute(ctx context.Context, args []string) error {
	cfg, o, err := loadConfig(args)
	if err != nil {
		return err
	}
	if o.showHelp {
		printUsage(newFlagSet(config.Default(), &options{}))
		return nil
	}
	if o.showVersion {
		fmt.Printf("rawtwitch %s\n", version)
		return nil
	}

	// ── credential prompt ────────────────────────────────────────
	if cfg.Credential == "" && !cfg.Anonymous && !o.dryRun && util.IsInteractive() {
		token, err := util.PromptSecret("OAuth token: ")
		if err != nil {
			return fmt.Errorf("reading oauth token: %w", err)
		}
		cfg.Credential = config.NormalizeCredential(string(token))
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := util.NewLogger(cfg.Verbose)

	if o.dryRun {
		logger.Info("configuration OK: %s as %s, channels %s",
			cfg.Address(), cfg.Username, strings.Join(cfg.Channels, ","))
		return nil
	}

	// ── run ──────────────────────────────────────────────────────
	mode := core.Build(cfg, core.Output{Stdout: os.Stdout, Stderr: os.Stderr}, logger)
	err = mode.Run(ctx)
	if cfg.Verbose >= 2 {
		fmt.Fprintln(os.Stderr, mode.Metrics.JSON())
	}
	return err
}

// loadConfig resolves the configuration.  Precedence, lowest first:
// defaults, .env file, environment, flags.
func loadConfig(args []string) (*config.Config, *options, error) {
	// First pass: syntax errors, --help, and the env file location.
	early := config.Default()
	if err := newFlagSet(early, &options{}).Parse(args); err != nil {
		return nil, nil, err
	}

	cfg := config.Default()
	envFile, optional := early.EnvFile, false
	if envFile == "" {
		envFile, optional = config.DefaultEnvFile, true
	}
	if err := config.LoadDotEnv(cfg, envFile, optional); err != nil {
		return nil, nil, err
	}
	config.LoadFromEnv(cfg)

	// Second pass: flags on top of the environment.  Binding the count
	// flag zeroes cfg.Verbose, so each -v adds to the loaded level.
	o := &options{}
	verbose := cfg.Verbose
	fs := newFlagSet(cfg, o)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	cfg.Verbose += verbose

	if o.oauth != "" {
		cfg.Credential = config.NormalizeCredential(o.oauth)
	}
	// Positional arguments are channels too.
	if list := append(o.channels, fs.Args()...); len(list) > 0 {
		cfg.Channels = config.ParseChannels(strings.Join(list, ","))
	}
	if o.noCaps {
		cfg.RequestCapabilities = false
	}
	if o.userRate && !fs.Changed("rate") {
		cfg.Rate = config.UserRate
	}
	cfg.Limiter = strings.ToLower(cfg.Limiter)
	cfg.ApplyAnonymous()

	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return nil, nil, fmt.Errorf("tunnel: %w", err)
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}
	return cfg, o, nil
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `rawtwitch – Twitch chat over raw IRC v%s

Connects to Twitch chat, logs in, joins channels and prints what it
receives, answering keep-alive pings and staying under the command
rate limit.

Usage:
  rawtwitch [options] [channel ...]

Settings are read from .env, then RAWTWITCH_* environment variables,
then flags.

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  rawtwitch -u mybot --oauth abc123 -c alpha,beta     Join two channels
  rawtwitch --anonymous alpha                         Read-only, no login
  rawtwitch --tls --raw -vv alpha                     TLS, raw lines, stats
  rawtwitch -T admin@bastion --anonymous alpha        Through an SSH tunnel
  rawtwitch --anonymous -e ./logger.sh alpha          Pipe chat into a script
`)
}
