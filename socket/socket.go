// Package socket maintains the client's event WebSocket and fans events out
// to handlers registered by API path.
package socket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/agent-racer/leagueconnect/auth"
	"github.com/agent-racer/leagueconnect/transport"
)

const (
	writeTimeout            = 10 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
)

// ErrNotConnected is returned by Send while no connection is open.
var ErrNotConnected = errors.New("websocket not connected")

// Options configures a Socket.
type Options struct {
	// Credentials of an already located client. When nil the first attempt
	// authenticates with Auth.
	Credentials *auth.Credentials
	// Auth is used to re-authenticate before every retry, since a restarted
	// client listens on a new port with a new token. AwaitConnection is
	// ignored; the retry policy does the waiting.
	Auth auth.Options
	// MaxRetries bounds reconnect attempts after a refused connection.
	MaxRetries int
	// PollInterval between reconnect attempts. Defaults to
	// auth.DefaultPollInterval.
	PollInterval     time.Duration
	HandshakeTimeout time.Duration
	// OnStateChange observes every transition. It runs synchronously on the
	// goroutine that caused the transition.
	OnStateChange func(State)
	Logger        logr.Logger
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = auth.DefaultPollInterval
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	if o.Logger.GetSink() == nil {
		o.Logger = logr.Discard()
	}
	o.Auth.AwaitConnection = false
	return o
}

func (o Options) policy() Policy {
	return Policy{MaxRetries: o.MaxRetries, PollInterval: o.PollInterval}
}

// Socket is a live event connection. Subscriptions survive reconnects.
type Socket struct {
	opts Options
	log  logr.Logger
	reg  *registry

	authenticate func(ctx context.Context) (auth.Credentials, error)
	dial         func(ctx context.Context, creds auth.Credentials) (*websocket.Conn, error)

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	writeMu sync.Mutex
	state   State
	conn    *websocket.Conn
	creds   auth.Credentials
	started bool
	closing bool
	err     error

	done     chan struct{}
	doneOnce sync.Once
}

// New returns an unconnected Socket. Handlers may be registered before
// Connect.
func New(opts Options) *Socket {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Socket{
		opts:   opts,
		log:    opts.Logger.WithName("socket"),
		reg:    newRegistry(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	authenticator := auth.NewAuthenticator(opts.Auth)
	s.authenticate = authenticator.Authenticate
	s.dial = s.dialAPI
	return s
}

// Connect opens a Socket and blocks until it is Open or has failed for good.
func Connect(ctx context.Context, opts Options) (*Socket, error) {
	s := New(opts)
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Connect establishes the first connection, retrying per the policy, then
// reads events in the background until Close or a failed reconnect. ctx
// bounds only the initial connect.
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("websocket: Connect called twice")
	}
	s.started = true
	s.mu.Unlock()

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	conn, err := s.connect(cctx, s.opts.Credentials)
	if err != nil {
		s.finish(err)
		return err
	}
	go s.readLoop(conn)
	return nil
}

// connect runs one full connect cycle: every attempt after the first
// re-authenticates, and only refused connections are retried.
func (s *Socket) connect(ctx context.Context, initial *auth.Credentials) (*websocket.Conn, error) {
	s.setState(StateConnecting)

	var (
		attempts int
		fatal    bool
		lastErr  error
	)
	operation := func() (conn *websocket.Conn, err error) {
		attempts++
		defer func() { lastErr = err }()

		creds, err := s.credentialsFor(ctx, attempts, initial)
		if err != nil {
			if fatalAuthError(err) {
				fatal = true
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		conn, err = s.dial(ctx, creds)
		if err != nil {
			if transport.Classify(err) != transport.KindConnectionRefused {
				fatal = true
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if werr := conn.WriteMessage(websocket.TextMessage, subscribeFrame(EventTopic)); werr != nil {
			conn.Close()
			fatal = true
			return nil, backoff.Permanent(fmt.Errorf("subscribing to %s: %w", EventTopic, werr))
		}
		conn.SetWriteDeadline(time.Time{})

		s.mu.Lock()
		s.creds = creds
		s.mu.Unlock()
		return conn, nil
	}
	notify := func(err error, next time.Duration) {
		s.log.V(1).Info("Connection attempt failed", "attempt", attempts, "retryIn", next, "error", err.Error())
	}

	policy := s.opts.policy()
	conn, err := backoff.RetryNotifyWithData(operation, backoff.WithContext(policy.backOff(), ctx), notify)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !fatal {
			return nil, errors.Join(lastErr, ctxErr)
		}
		return nil, s.connectError(policy, attempts, fatal, err)
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		conn.Close()
		return nil, context.Canceled
	}
	s.conn = conn
	port := s.creds.Port
	s.mu.Unlock()

	s.log.Info("Connected", "port", port, "attempts", attempts)
	s.setState(StateOpen)
	return conn, nil
}

func (s *Socket) credentialsFor(ctx context.Context, attempt int, initial *auth.Credentials) (auth.Credentials, error) {
	if attempt == 1 && initial != nil {
		return *initial, nil
	}
	return s.authenticate(ctx)
}

func (s *Socket) connectError(p Policy, attempts int, fatal bool, err error) error {
	switch {
	case fatal:
		return &ConnectError{Code: CodeOther, Attempts: attempts, Retries: attempts - 1, Err: err}
	case p.MaxRetries == 0:
		return &ConnectError{Code: CodeNoRetries, Attempts: attempts, Err: err}
	default:
		return &ConnectError{Code: CodeMaxRetries, Attempts: attempts, Retries: attempts - 1, Err: err}
	}
}

func (s *Socket) dialAPI(ctx context.Context, creds auth.Credentials) (*websocket.Conn, error) {
	tlsConf, err := transport.TLSConfig(creds.Certificate)
	if err != nil {
		return nil, err
	}

	d := websocket.Dialer{
		TLSClientConfig:  tlsConf,
		HandshakeTimeout: s.opts.HandshakeTimeout,
	}
	header := http.Header{}
	token := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + creds.Password))
	header.Set("Authorization", "Basic "+token)

	url := "wss://" + transport.Host + ":" + strconv.Itoa(creds.Port) + "/"
	conn, resp, err := d.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

func (s *Socket) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err == nil {
			s.dispatch(data)
			continue
		}
		conn.Close()

		if s.isClosing() {
			s.finish(nil)
			return
		}

		s.log.Info("Connection lost, reconnecting", "error", err.Error())
		s.setState(StateReconnecting)

		next, err := s.connect(s.ctx, nil)
		if err != nil {
			if s.isClosing() {
				err = nil
			} else {
				s.log.Error(err, "Reconnect failed")
			}
			s.finish(err)
			return
		}
		conn = next
	}
}

func (s *Socket) dispatch(frame []byte) {
	ev, ok := decodeEvent(frame)
	if !ok {
		s.log.V(2).Info("Dropping unrecognised frame", "size", len(frame))
		return
	}
	for _, sub := range s.reg.handlers(ev.URI) {
		s.invoke(sub, ev)
	}
}

func (s *Socket) invoke(sub *Subscription, ev EventResponse) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(fmt.Errorf("panic: %v", r), "Event handler panicked", "path", sub.Path, "subscription", sub.ID.String())
		}
	}()
	sub.handler(ev.Data, ev)
}

// Subscribe registers h for events whose uri equals path after
// normalization. Handlers for one path run in registration order.
func (s *Socket) Subscribe(path string, h Handler) *Subscription {
	return s.reg.add(path, h)
}

// Unsubscribe removes every handler for path.
func (s *Socket) Unsubscribe(path string) {
	s.reg.removePath(path)
}

// Paths lists subscribed paths in first-registration order.
func (s *Socket) Paths() []string {
	return s.reg.paths()
}

// Listeners returns the number of handlers registered for path.
func (s *Socket) Listeners(path string) int {
	return s.reg.count(path)
}

// SubscribeJSON decodes each event's data into T before calling fn. A null
// payload (a deleted resource) is passed as nil. Events that do not decode
// are skipped.
func SubscribeJSON[T any](s *Socket, path string, fn func(data *T, event EventResponse)) *Subscription {
	return s.Subscribe(path, func(raw json.RawMessage, event EventResponse) {
		if event.IsNull() {
			fn(nil, event)
			return
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			s.log.V(1).Info("Skipping event with unexpected payload", "uri", event.URI, "error", err.Error())
			return
		}
		fn(&v, event)
	})
}

// Send writes a raw JSON frame such as an extra WAMP subscribe.
func (s *Socket) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	conn := s.conn
	open := s.state == StateOpen
	s.mu.Unlock()
	if conn == nil || !open {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// SubscribeTopic asks the client to publish an additional WAMP topic.
func (s *Socket) SubscribeTopic(topic string) error {
	return s.Send(json.RawMessage(subscribeFrame(topic)))
}

// UnsubscribeTopic stops a WAMP topic.
func (s *Socket) UnsubscribeTopic(topic string) error {
	return s.Send(json.RawMessage(unsubscribeFrame(topic)))
}

// State returns the current connection state.
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Credentials returns those of the current or last connection.
func (s *Socket) Credentials() auth.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds
}

// Done is closed once the socket reaches StateClosed.
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

// Err returns why the socket closed, or nil after a clean Close.
func (s *Socket) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close shuts the socket down. It does not wait for the read goroutine; use
// Done for that.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	conn := s.conn
	started := s.started
	s.mu.Unlock()

	s.cancel()
	if conn == nil {
		if !started {
			s.finish(nil)
		}
		return nil
	}

	s.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()
	return conn.Close()
}

func (s *Socket) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Socket) finish(err error) {
	s.doneOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		s.cancel()
		s.setState(StateClosed)
		close(s.done)
	})
}

func (s *Socket) setState(st State) {
	s.mu.Lock()
	if s.state == st || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.mu.Unlock()

	s.log.V(1).Info("State changed", "state", st.String())
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(st)
	}
}
