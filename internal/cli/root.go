// Package cli implements the lcuctl commands.
package cli

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"

	"github.com/agent-racer/leagueconnect/auth"
	"github.com/agent-racer/leagueconnect/internal/config"
)

type globalFlags struct {
	configPath  string
	verbosity   int
	unsafe      bool
	await       bool
	processName string
}

// app holds state shared by every subcommand once flags are parsed.
type app struct {
	flags globalFlags
	cfg   *config.Config
	log   logr.Logger
	out   io.Writer
}

func NewRootCmd() *cobra.Command {
	a := &app{out: os.Stdout}

	rootCmd := &cobra.Command{
		Use:   "lcuctl",
		Short: "Talks to a running League client's local API",
		Long: `lcuctl locates a running League client, reads its API credentials and
issues requests or streams events from it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "lcuctl.yaml", "Path to config file")
	pf.IntVarP(&a.flags.verbosity, "verbose", "v", 0, "Log verbosity (0 shows only major events)")
	pf.BoolVar(&a.flags.unsafe, "unsafe", false, "Skip certificate verification unless a certificate is configured")
	pf.BoolVar(&a.flags.await, "await", false, "Wait for the client to start instead of failing")
	pf.StringVar(&a.flags.processName, "process-name", "", "Client process name")

	rootCmd.AddCommand(newCredentialsCmd(a))
	rootCmd.AddCommand(newRequestCmd(a))
	rootCmd.AddCommand(newWatchCmd(a))
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadOrDefault(a.flags.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Log.Verbosity = a.flags.verbosity
	}
	if flags.Changed("unsafe") {
		cfg.Client.Unsafe = a.flags.unsafe
	}
	if flags.Changed("await") {
		cfg.Client.AwaitConnection = a.flags.await
	}
	if a.flags.processName != "" {
		cfg.Client.ProcessName = a.flags.processName
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	stdr.SetVerbosity(cfg.Log.Verbosity)
	a.cfg = cfg
	a.log = stdr.New(log.New(cmd.ErrOrStderr(), "", log.LstdFlags))
	a.out = cmd.OutOrStdout()
	return nil
}

func (a *app) authOptions() (auth.Options, error) {
	return a.cfg.AuthOptions(a.log)
}
