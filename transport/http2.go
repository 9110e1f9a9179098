package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"sync"

	"golang.org/x/net/http2"

	"github.com/agent-racer/leagueconnect/auth"
)

// Session is one multiplexed HTTP/2 connection to the client API. Any
// number of requests may share it until Close.
type Session struct {
	creds auth.Credentials
	cc    *http2.ClientConn

	mu     sync.Mutex
	closed bool
}

// NewSession dials the API and negotiates HTTP/2 over TLS.
func NewSession(ctx context.Context, creds auth.Credentials) (*Session, error) {
	tlsConf, err := tlsConfigFor("http2 dial", creds.Certificate)
	if err != nil {
		return nil, err
	}
	tlsConf.NextProtos = []string{http2.NextProtoTLS}

	dialer := &tls.Dialer{Config: tlsConf}
	conn, err := dialer.DialContext(ctx, "tcp", address(creds.Port))
	if err != nil {
		return nil, wrapError("http2 dial", err)
	}

	tlsConn := conn.(*tls.Conn)
	if proto := tlsConn.ConnectionState().NegotiatedProtocol; proto != http2.NextProtoTLS {
		tlsConn.Close()
		return nil, &Error{Kind: KindOther, Op: "http2 dial", Err: fmt.Errorf("server negotiated %q instead of h2", proto)}
	}

	cc, err := (&http2.Transport{}).NewClientConn(tlsConn)
	if err != nil {
		tlsConn.Close()
		return nil, wrapError("http2 handshake", err)
	}

	return &Session{creds: creds, cc: cc}, nil
}

// Request sends one request on the session. It fails with ErrSessionClosed
// once the session is closed instead of blocking.
func (s *Session) Request(ctx context.Context, opts RequestOptions) (*Response, error) {
	if s.Closed() {
		return nil, ErrSessionClosed
	}

	req, err := newRequest(ctx, opts, s.creds)
	if err != nil {
		return nil, err
	}

	resp, err := s.cc.RoundTrip(req)
	if err != nil {
		if s.Closed() {
			return nil, ErrSessionClosed
		}
		return nil, wrapError(req.Method+" "+req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapError("reading response", err)
	}
	return newResponse(resp, body), nil
}

// Closed reports whether Close was called or the server ended the
// connection.
func (s *Session) Closed() bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return true
	}
	st := s.cc.State()
	return st.Closed || st.Closing
}

// Close shuts the connection down. Calling it again is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.cc.Close()
}
