package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
)

// ErrorKind classifies a transport failure. The kind is derived from the
// error chain produced by the dialer, never from message text.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindConnectionRefused
	KindTLS
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnectionRefused:
		return "connection refused"
	case KindTLS:
		return "tls verification failed"
	default:
		return "transport error"
	}
}

var (
	// ErrInvalidCertificate is returned when the trust anchor is not valid PEM.
	ErrInvalidCertificate = errors.New("certificate contains no valid PEM blocks")

	// ErrSessionClosed is returned by Session.Request after Close or after
	// the peer shut the connection down.
	ErrSessionClosed = errors.New("http2 session is closed")
)

// Error wraps an I/O failure with its classification.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify inspects err and reports which kind of failure it is.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindOther
	}

	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}

	var (
		verifyErr    *tls.CertificateVerificationError
		unknownAuth  x509.UnknownAuthorityError
		certInvalid  x509.CertificateInvalidError
		hostnameErr  x509.HostnameError
		recordHeader tls.RecordHeaderError
	)
	switch {
	case isConnectionRefused(err):
		return KindConnectionRefused
	case errors.As(err, &verifyErr),
		errors.As(err, &unknownAuth),
		errors.As(err, &certInvalid),
		errors.As(err, &hostnameErr),
		errors.As(err, &recordHeader):
		return KindTLS
	default:
		return KindOther
	}
}

func wrapError(op string, err error) error {
	return &Error{Kind: Classify(err), Op: op, Err: err}
}
