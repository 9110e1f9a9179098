package cli

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agent-racer/leagueconnect/auth"
	"github.com/agent-racer/leagueconnect/liveness"
	"github.com/agent-racer/leagueconnect/socket"
)

func newWatchCmd(a *app) *cobra.Command {
	var noMonitor bool

	cmd := &cobra.Command{
		Use:   "watch PATH...",
		Short: "Stream API events for the given paths as JSON lines",
		Example: `  lcuctl watch /lol-gameflow/v1/gameflow-phase /lol-champ-select/v1/session`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.authOptions()
			if err != nil {
				return err
			}
			creds, err := auth.Authenticate(cmd.Context(), opts)
			if err != nil {
				return err
			}
			a.log.Info("Client located", "pid", creds.PID, "port", creds.Port)

			sockOpts := a.cfg.SocketOptions(&creds, opts, a.log)
			sockOpts.OnStateChange = func(st socket.State) {
				a.log.V(1).Info("Socket state", "state", st.String())
			}
			s := socket.New(sockOpts)

			var outMu sync.Mutex
			enc := json.NewEncoder(a.out)
			for _, path := range args {
				s.Subscribe(path, func(_ json.RawMessage, ev socket.EventResponse) {
					outMu.Lock()
					defer outMu.Unlock()
					if err := enc.Encode(ev); err != nil {
						a.log.Error(err, "Writing event failed", "uri", ev.URI)
					}
				})
			}

			g, ctx := errgroup.WithContext(cmd.Context())

			if err := s.Connect(ctx); err != nil {
				return err
			}
			g.Go(func() error {
				select {
				case <-ctx.Done():
					s.Close()
					<-s.Done()
					return nil
				case <-s.Done():
					if err := s.Err(); err != nil {
						return err
					}
					return errors.New("event socket closed")
				}
			})

			if a.cfg.Monitor.Enabled && !noMonitor {
				monOpts := a.cfg.MonitorOptions(opts, a.log)
				monOpts.OnDisconnect = func() {
					a.log.Info("Client exited, waiting for it to restart")
				}
				monOpts.OnConnect = func(c auth.Credentials) {
					a.log.Info("Client restarted", "pid", c.PID, "port", c.Port)
				}
				mon := liveness.NewMonitor(creds, monOpts)
				if err := mon.Start(ctx); err != nil {
					s.Close()
					return err
				}
				g.Go(func() error {
					<-ctx.Done()
					mon.Stop()
					return nil
				})
			}

			err = g.Wait()
			if errors.Is(err, cmd.Context().Err()) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&noMonitor, "no-monitor", false, "Do not watch the client process for restarts")
	return cmd
}
