package auth

import (
	"time"

	"github.com/go-logr/logr"
)

const (
	// DefaultProcessName is the client UX process that carries the API flags.
	DefaultProcessName = "LeagueClientUx"
	// DefaultPollInterval separates attempts while awaiting a client.
	DefaultPollInterval = 2500 * time.Millisecond
)

// Options configures Authenticate. The zero value locates the default
// process once and trusts the bundled certificate.
type Options struct {
	// Name of the client process, without the .exe suffix.
	Name string
	// AwaitConnection keeps polling until a client is found instead of
	// failing with ErrClientNotFound.
	AwaitConnection bool
	// PollInterval between attempts in await mode.
	PollInterval time.Duration
	// Unsafe disables certificate verification unless Certificate is set.
	Unsafe bool
	// Certificate is a PEM trust anchor that overrides the bundled one.
	Certificate string
	// LegacyEnumeration uses wmic instead of Get-CimInstance on Windows.
	LegacyEnumeration bool
	// WindowsShell is ShellPowerShell (default) or ShellCmd.
	WindowsShell string
	// Locator overrides process discovery. Defaults to a CommandLocator for
	// the host OS.
	Locator Locator
	Logger  logr.Logger
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = DefaultProcessName
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.WindowsShell == "" {
		o.WindowsShell = ShellPowerShell
	}
	if o.Logger.GetSink() == nil {
		o.Logger = logr.Discard()
	}
	return o
}
