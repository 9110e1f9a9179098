// Package liveness watches a located client process and re-authenticates
// when it restarts.
package liveness

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/agent-racer/leagueconnect/auth"
)

// Options configures a Monitor.
type Options struct {
	// PollInterval between liveness probes. Defaults to
	// auth.DefaultPollInterval.
	PollInterval time.Duration
	// Auth locates the client again after it exits. AwaitConnection is
	// forced on and PollInterval is shared.
	Auth auth.Options
	// OnConnect receives the credentials of a restarted client.
	OnConnect func(auth.Credentials)
	// OnDisconnect fires once when the watched process disappears.
	OnDisconnect func()
	Logger       logr.Logger
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = auth.DefaultPollInterval
	}
	if o.Logger.GetSink() == nil {
		o.Logger = logr.Discard()
	}
	o.Auth.AwaitConnection = true
	o.Auth.PollInterval = o.PollInterval
	if o.Auth.Logger.GetSink() == nil {
		o.Auth.Logger = o.Logger
	}
	return o
}

// Monitor polls the client process and tracks its credentials across
// restarts.
type Monitor struct {
	opts Options
	log  logr.Logger

	alive        func(pid int) bool
	authenticate func(ctx context.Context) (auth.Credentials, error)

	mu        sync.Mutex
	creds     auth.Credentials
	connected bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewMonitor watches the process behind creds.
func NewMonitor(creds auth.Credentials, opts Options) *Monitor {
	opts = opts.withDefaults()
	authenticator := auth.NewAuthenticator(opts.Auth)
	return &Monitor{
		opts:         opts,
		log:          opts.Logger.WithName("liveness"),
		alive:        processAlive,
		authenticate: authenticator.Authenticate,
		creds:        creds,
	}
}

// Start begins polling in the background. It fails with
// auth.ErrClientNotFound when the process is already gone. Polling stops
// when ctx is done or Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return errors.New("liveness: monitor already started")
	}
	if !m.alive(m.creds.PID) {
		return auth.ErrClientNotFound
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.connected = true
	m.done = make(chan struct{})
	go m.run(ctx, m.done)

	m.log.Info("Monitor started", "pid", m.creds.PID, "pollInterval", m.opts.PollInterval)
	return nil
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.V(1).Info("Monitor stopped")
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	m.mu.Lock()
	pid := m.creds.PID
	connected := m.connected
	m.mu.Unlock()

	if connected {
		if m.alive(pid) {
			return
		}
		m.mu.Lock()
		m.connected = false
		m.creds = auth.Credentials{}
		m.mu.Unlock()

		m.log.Info("Client process exited", "pid", pid)
		if m.opts.OnDisconnect != nil {
			m.opts.OnDisconnect()
		}
	}

	creds, err := m.authenticate(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.log.Error(err, "Re-authentication failed, retrying on next poll")
		}
		return
	}

	m.mu.Lock()
	m.creds = creds
	m.connected = true
	m.mu.Unlock()

	m.log.Info("Client reconnected", "pid", creds.PID, "port", creds.Port)
	if m.opts.OnConnect != nil {
		m.opts.OnConnect(creds)
	}
}

// Credentials returns the current credentials, or the zero value while the
// client is down.
func (m *Monitor) Credentials() auth.Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds
}

// Connected reports whether the watched process was alive at the last poll.
func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Stop ends polling and waits for the loop to exit. Safe to call more than
// once and before Start, but not from OnConnect or OnDisconnect.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
