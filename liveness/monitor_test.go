package liveness

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agent-racer/leagueconnect/auth"
)

// fakeProcess toggles liveness from the test.
type fakeProcess struct {
	mu   sync.Mutex
	live map[int]bool
}

func (f *fakeProcess) set(pid int, alive bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[pid] = alive
}

func (f *fakeProcess) alive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[pid]
}

func newTestMonitor(creds auth.Credentials, proc *fakeProcess, opts Options) *Monitor {
	if opts.PollInterval == 0 {
		opts.PollInterval = 5 * time.Millisecond
	}
	m := NewMonitor(creds, opts)
	m.alive = proc.alive
	return m
}

func TestStart_DeadProcess(t *testing.T) {
	proc := &fakeProcess{live: map[int]bool{}}
	m := newTestMonitor(auth.Credentials{PID: 42}, proc, Options{})

	err := m.Start(context.Background())
	require.ErrorIs(t, err, auth.ErrClientNotFound)
	m.Stop()
}

func TestStart_Twice(t *testing.T) {
	proc := &fakeProcess{live: map[int]bool{42: true}}
	m := newTestMonitor(auth.Credentials{PID: 42}, proc, Options{})

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()
	require.Error(t, m.Start(context.Background()))
}

func TestAliveProcessFiresNothing(t *testing.T) {
	proc := &fakeProcess{live: map[int]bool{42: true}}
	var events atomic.Int32
	m := newTestMonitor(auth.Credentials{PID: 42}, proc, Options{
		OnConnect:    func(auth.Credentials) { events.Add(1) },
		OnDisconnect: func() { events.Add(1) },
	})
	m.authenticate = func(context.Context) (auth.Credentials, error) {
		t.Error("authenticate called for a live process")
		return auth.Credentials{}, nil
	}

	require.NoError(t, m.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	m.Stop()

	require.Equal(t, int32(0), events.Load())
	require.True(t, m.Connected())
}

func TestRestartReauthenticates(t *testing.T) {
	proc := &fakeProcess{live: map[int]bool{42: true}}
	disconnected := make(chan struct{}, 1)
	connected := make(chan auth.Credentials, 1)
	restarted := auth.Credentials{PID: 43, Port: 50000, Password: "new"}

	var (
		auths     atomic.Int32
		m         *Monitor
		whileDown []auth.Credentials
	)
	m = newTestMonitor(auth.Credentials{PID: 42, Port: 40000, Password: "old"}, proc, Options{
		OnConnect: func(c auth.Credentials) { connected <- c },
		OnDisconnect: func() {
			whileDown = append(whileDown, m.Credentials())
			disconnected <- struct{}{}
		},
	})
	m.authenticate = func(context.Context) (auth.Credentials, error) {
		whileDown = append(whileDown, m.Credentials())
		if auths.Add(1) < 3 {
			return auth.Credentials{}, auth.ErrClientElevatedPerms
		}
		proc.set(43, true)
		return restarted, nil
	}

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	proc.set(42, false)

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("OnDisconnect not called")
	}
	select {
	case got := <-connected:
		require.Equal(t, restarted, got)
	case <-time.After(2 * time.Second):
		t.Fatal("OnConnect not called")
	}

	require.Equal(t, restarted, m.Credentials())
	require.Equal(t, int32(3), auths.Load())
	require.Len(t, whileDown, 4)
	for _, c := range whileDown {
		require.Equal(t, auth.Credentials{}, c, "stale credentials exposed while the client was down")
	}
	require.Len(t, disconnected, 0, "disconnect must fire once per exit")
}

func TestStopHaltsPolling(t *testing.T) {
	proc := &fakeProcess{live: map[int]bool{42: true}}
	var probes atomic.Int32
	m := newTestMonitor(auth.Credentials{PID: 42}, proc, Options{})
	m.alive = func(pid int) bool {
		probes.Add(1)
		return true
	}

	require.NoError(t, m.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	m.Stop()
	m.Stop()

	after := probes.Load()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, after, probes.Load())
}

func TestContextCancelStopsAwait(t *testing.T) {
	proc := &fakeProcess{live: map[int]bool{42: true}}
	m := newTestMonitor(auth.Credentials{PID: 42}, proc, Options{})

	entered := make(chan struct{})
	m.authenticate = func(ctx context.Context) (auth.Credentials, error) {
		close(entered)
		<-ctx.Done()
		return auth.Credentials{}, errors.Join(auth.ErrClientNotFound, ctx.Err())
	}

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Start(ctx))
	proc.set(42, false)

	<-entered
	cancel()
	m.Stop()
	require.False(t, m.Connected())
}

func TestOptionDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	require.Equal(t, auth.DefaultPollInterval, o.PollInterval)
	require.True(t, o.Auth.AwaitConnection)
	require.Equal(t, o.PollInterval, o.Auth.PollInterval)
}

func TestProcessAlive(t *testing.T) {
	require.True(t, processAlive(os.Getpid()))
	require.False(t, processAlive(0))
	require.False(t, processAlive(-1))
}
