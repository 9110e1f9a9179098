package socket

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agent-racer/leagueconnect/auth"
)

// RetryForever makes the socket reconnect until it succeeds or is closed.
const RetryForever = -1

// Policy bounds reconnect attempts after a refused connection.
type Policy struct {
	// MaxRetries is the number of attempts after the first: 0 disables
	// retries, RetryForever never gives up.
	MaxRetries int
	// PollInterval is the fixed wait between attempts.
	PollInterval time.Duration
}

func (p Policy) backOff() backoff.BackOff {
	b := backoff.NewConstantBackOff(p.PollInterval)
	if p.MaxRetries < 0 {
		return b
	}
	return backoff.WithMaxRetries(b, uint64(p.MaxRetries))
}

// ErrorCode tells why a connection could not be established.
type ErrorCode int

const (
	// CodeOther is any failure other than a refused connection. It is never
	// retried.
	CodeOther ErrorCode = iota
	// CodeNoRetries is a refused connection with retries disabled.
	CodeNoRetries
	// CodeMaxRetries is a refused connection after every retry was used.
	CodeMaxRetries
)

// ConnectError reports a failed connect or reconnect.
type ConnectError struct {
	Code     ErrorCode
	Attempts int
	Retries  int
	Err      error
}

func (e *ConnectError) Error() string {
	switch e.Code {
	case CodeNoRetries:
		return fmt.Sprintf("websocket connection refused, retries disabled: %v", e.Err)
	case CodeMaxRetries:
		return fmt.Sprintf("websocket connection refused after %d retries: %v", e.Retries, e.Err)
	default:
		return fmt.Sprintf("websocket connect failed: %v", e.Err)
	}
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// fatalAuthError reports authentication failures that no retry can fix.
// A client that is not running yet is treated like a refused connection.
func fatalAuthError(err error) bool {
	return errors.Is(err, auth.ErrClientElevatedPerms) || errors.Is(err, auth.ErrInvalidPlatform)
}
