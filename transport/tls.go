package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strconv"
)

// Host is the only address the client API is served on.
const Host = "127.0.0.1"

func address(port int) string {
	return net.JoinHostPort(Host, strconv.Itoa(port))
}

// TLSConfig builds a trust configuration for a single connection. With a
// certificate it is the only root the server chain may lead to; without one
// verification is skipped. Nothing here touches process-wide TLS state.
//
// The client serves a certificate without an IP SAN for 127.0.0.1, so the
// chain is checked in VerifyConnection rather than by the default verifier,
// which would also demand a hostname match.
func TLSConfig(certificate string) (*tls.Config, error) {
	if certificate == "" {
		return &tls.Config{InsecureSkipVerify: true}, nil
	}

	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM([]byte(certificate)) {
		return nil, ErrInvalidCertificate
	}

	return &tls.Config{
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			return verifyChain(cs, roots)
		},
	}, nil
}

func verifyChain(cs tls.ConnectionState, roots *x509.CertPool) error {
	if len(cs.PeerCertificates) == 0 {
		return errors.New("server presented no certificate")
	}

	intermediates := x509.NewCertPool()
	for _, cert := range cs.PeerCertificates[1:] {
		intermediates.AddCert(cert)
	}

	_, err := cs.PeerCertificates[0].Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
	})
	if err != nil {
		return &tls.CertificateVerificationError{UnverifiedCertificates: cs.PeerCertificates, Err: err}
	}
	return nil
}

// tlsConfigFor is TLSConfig with the error wrapped as a *Error for op.
func tlsConfigFor(op string, certificate string) (*tls.Config, error) {
	cfg, err := TLSConfig(certificate)
	if err != nil {
		return nil, &Error{Kind: KindTLS, Op: op, Err: fmt.Errorf("loading trust anchor: %w", err)}
	}
	return cfg, nil
}
