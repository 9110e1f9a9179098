// Package auth locates a running League client and extracts the credentials
// needed to talk to its loopback API.
package auth

import (
	_ "embed"
	"fmt"
)

// Username is the fixed Basic auth user accepted by the client API.
const Username = "riot"

//go:embed riotgames.pem
var defaultCertificate string

// DefaultCertificate returns the bundled root certificate that signs the
// client's self-signed TLS certificate.
func DefaultCertificate() string {
	return defaultCertificate
}

// Credentials identify one client session. A new value is produced by every
// successful Authenticate call; it is never written to disk.
type Credentials struct {
	// Port the client API listens on at 127.0.0.1.
	Port int `json:"port"`
	// Password is the remoting auth token, used as the Basic auth password.
	Password string `json:"password"`
	// PID of the client process that owns the API.
	PID int `json:"pid"`
	// Certificate is the PEM trust anchor for the API. Empty means certificate
	// verification is disabled for connections using these credentials.
	Certificate string `json:"certificate,omitempty"`
}

// HasCertificate reports whether connections should verify the server
// against Certificate.
func (c Credentials) HasCertificate() bool {
	return c.Certificate != ""
}

// String masks the password so credentials are safe to log.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Port: %d, PID: %d, Password: %s, Certificate: %t}",
		c.Port, c.PID, maskToken(c.Password), c.HasCertificate())
}

// Masked returns a copy with the password masked, for display.
func (c Credentials) Masked() Credentials {
	c.Password = maskToken(c.Password)
	return c
}

func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:2] + "****" + token[len(token)-2:]
}

// ResolveCertificate picks the trust anchor for a session. An explicit
// certificate always wins; otherwise unsafe selects no certificate at all and
// the bundled default is used as a last resort.
func ResolveCertificate(explicit string, unsafe bool) string {
	switch {
	case explicit != "":
		return explicit
	case unsafe:
		return ""
	default:
		return defaultCertificate
	}
}
