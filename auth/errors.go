package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPlatform is returned when the host OS is not one the client
	// runs on (windows, linux, darwin). It is never retried.
	ErrInvalidPlatform = errors.New("process runs on a platform the client does not support")

	// ErrClientNotFound is returned when no client process could be located
	// or its descriptor could not be read. Await mode retries it.
	ErrClientNotFound = errors.New("league client process could not be located")

	// ErrClientElevatedPerms is returned when the client process exists but
	// cannot be inspected because it runs with higher privileges than the
	// caller. It short-circuits await mode.
	ErrClientElevatedPerms = errors.New("league client is running with elevated permissions and cannot be inspected")
)

// ProcessArgsParsingError reports process output that did not contain the
// expected flags. Fields that did parse are kept for diagnostics; the zero
// value marks a field that was missing or malformed.
type ProcessArgsParsingError struct {
	Raw      string
	Port     int
	Password string
	PID      int
}

func (e *ProcessArgsParsingError) Error() string {
	var missing []string
	if e.Port == 0 {
		missing = append(missing, "app-port")
	}
	if e.Password == "" {
		missing = append(missing, "remoting-auth-token")
	}
	if e.PID == 0 {
		missing = append(missing, "app-pid")
	}
	return fmt.Sprintf("failed to parse client process arguments: missing or invalid %s", strings.Join(missing, ", "))
}

// isPermanent reports whether err must stop an await-mode poll.
func isPermanent(err error) bool {
	return errors.Is(err, ErrClientElevatedPerms) || errors.Is(err, ErrInvalidPlatform)
}
