package auth

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
)

// Authenticator locates the client and parses its credentials. It holds no
// state between calls, so concurrent Authenticate calls are independent.
type Authenticator struct {
	opts    Options
	goos    string
	locator Locator
	log     logr.Logger
}

func NewAuthenticator(opts Options) *Authenticator {
	opts = opts.withDefaults()

	locator := opts.Locator
	if locator == nil {
		locator = &CommandLocator{
			GOOS:   runtime.GOOS,
			Legacy: opts.LegacyEnumeration,
			Shell:  opts.WindowsShell,
		}
	}

	return &Authenticator{
		opts:    opts,
		goos:    runtime.GOOS,
		locator: locator,
		log:     opts.Logger.WithName("auth"),
	}
}

// Authenticate is shorthand for NewAuthenticator(opts).Authenticate(ctx).
func Authenticate(ctx context.Context, opts Options) (Credentials, error) {
	return NewAuthenticator(opts).Authenticate(ctx)
}

// Options returns the effective options, defaults applied.
func (a *Authenticator) Options() Options {
	return a.opts
}

// Authenticate locates the client and returns its credentials. In await mode
// it polls every PollInterval until a client shows up, ctx is done, or a
// permanent error (elevated permissions) occurs.
func (a *Authenticator) Authenticate(ctx context.Context) (Credentials, error) {
	if !supportedPlatform(a.goos) {
		return Credentials{}, ErrInvalidPlatform
	}

	if !a.opts.AwaitConnection {
		return a.tryAuthenticate(ctx)
	}

	attempts := 0
	var lastErr error
	operation := func() (Credentials, error) {
		attempts++
		creds, err := a.tryAuthenticate(ctx)
		if err != nil && isPermanent(err) {
			return Credentials{}, backoff.Permanent(err)
		}
		return creds, err
	}
	notify := func(err error, next time.Duration) {
		lastErr = err
		a.log.V(1).Info("Client not available yet", "attempt", attempts, "retryIn", next, "reason", err.Error())
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(a.opts.PollInterval), ctx)
	creds, err := backoff.RetryNotifyWithData(operation, policy, notify)
	if err != nil {
		if ctx.Err() != nil && lastErr != nil {
			return Credentials{}, errors.Join(lastErr, err)
		}
		return Credentials{}, err
	}

	a.log.Info("Client located", "port", creds.Port, "pid", creds.PID, "attempts", attempts)
	return creds, nil
}

func (a *Authenticator) tryAuthenticate(ctx context.Context) (Credentials, error) {
	raw, err := a.locator.Locate(ctx, a.opts.Name)
	if err != nil {
		return Credentials{}, err
	}
	return ParseCredentials(raw, a.opts.Unsafe, a.opts.Certificate)
}

func supportedPlatform(goos string) bool {
	switch goos {
	case "windows", "linux", "darwin":
		return true
	default:
		return false
	}
}
