package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"

	"github.com/agent-racer/leagueconnect/auth"
	"github.com/agent-racer/leagueconnect/liveness"
	"github.com/agent-racer/leagueconnect/socket"
)

// Discovery strategies for locating the client.
const (
	DiscoveryCommand      = "command"
	DiscoveryProcessTable = "process_table"
	DiscoveryLockfile     = "lockfile"
)

const (
	DefaultMaxRetries       = 10
	DefaultHandshakeTimeout = 10 * time.Second
)

type Config struct {
	Client  ClientConfig  `yaml:"client"`
	Socket  SocketConfig  `yaml:"socket"`
	Monitor MonitorConfig `yaml:"monitor"`
	Log     LogConfig     `yaml:"log"`
}

type ClientConfig struct {
	ProcessName       string        `yaml:"process_name"`
	AwaitConnection   bool          `yaml:"await_connection"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	Unsafe            bool          `yaml:"unsafe"`
	Certificate       string        `yaml:"certificate"`
	CertificateFile   string        `yaml:"certificate_file"`
	LegacyEnumeration bool          `yaml:"legacy_enumeration"`
	WindowsShell      string        `yaml:"windows_shell"`
	Discovery         string        `yaml:"discovery"`
}

type SocketConfig struct {
	MaxRetries       int           `yaml:"max_retries"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

type MonitorConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type LogConfig struct {
	// Verbosity is the logr V level printed; 0 shows only Info.
	Verbosity int `yaml:"verbosity"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			ProcessName:  auth.DefaultProcessName,
			PollInterval: auth.DefaultPollInterval,
			WindowsShell: auth.ShellPowerShell,
			Discovery:    DiscoveryCommand,
		},
		Socket: SocketConfig{
			MaxRetries:       DefaultMaxRetries,
			PollInterval:     auth.DefaultPollInterval,
			HandshakeTimeout: DefaultHandshakeTimeout,
		},
		Monitor: MonitorConfig{
			Enabled:      true,
			PollInterval: auth.DefaultPollInterval,
		},
	}
}

// Load reads path over the defaults. Fields absent from the file keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields Default().
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	var errs []error
	if c.Client.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("client.poll_interval must not be negative, got %s", c.Client.PollInterval))
	}
	if c.Socket.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("socket.poll_interval must not be negative, got %s", c.Socket.PollInterval))
	}
	if c.Socket.HandshakeTimeout < 0 {
		errs = append(errs, fmt.Errorf("socket.handshake_timeout must not be negative, got %s", c.Socket.HandshakeTimeout))
	}
	if c.Monitor.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("monitor.poll_interval must not be negative, got %s", c.Monitor.PollInterval))
	}
	if c.Socket.MaxRetries < socket.RetryForever {
		errs = append(errs, fmt.Errorf("socket.max_retries must be -1 or greater, got %d", c.Socket.MaxRetries))
	}
	switch c.Client.WindowsShell {
	case "", auth.ShellPowerShell, auth.ShellCmd:
	default:
		errs = append(errs, fmt.Errorf("client.windows_shell must be %q or %q, got %q", auth.ShellPowerShell, auth.ShellCmd, c.Client.WindowsShell))
	}
	switch c.Client.Discovery {
	case "", DiscoveryCommand, DiscoveryProcessTable, DiscoveryLockfile:
	default:
		errs = append(errs, fmt.Errorf("client.discovery: unknown strategy %q", c.Client.Discovery))
	}
	if c.Log.Verbosity < 0 {
		errs = append(errs, fmt.Errorf("log.verbosity must not be negative, got %d", c.Log.Verbosity))
	}
	return errors.Join(errs...)
}

// Certificate returns the configured PEM text, reading certificate_file when
// set. An inline certificate wins over the file.
func (c *Config) Certificate() (string, error) {
	if strings.TrimSpace(c.Client.Certificate) != "" {
		return c.Client.Certificate, nil
	}
	if c.Client.CertificateFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.Client.CertificateFile)
	if err != nil {
		return "", fmt.Errorf("reading certificate: %w", err)
	}
	return string(data), nil
}

// AuthOptions builds authentication options from the client section.
func (c *Config) AuthOptions(logger logr.Logger) (auth.Options, error) {
	cert, err := c.Certificate()
	if err != nil {
		return auth.Options{}, err
	}
	return auth.Options{
		Name:              c.Client.ProcessName,
		AwaitConnection:   c.Client.AwaitConnection,
		PollInterval:      c.Client.PollInterval,
		Unsafe:            c.Client.Unsafe,
		Certificate:       cert,
		LegacyEnumeration: c.Client.LegacyEnumeration,
		WindowsShell:      c.Client.WindowsShell,
		Locator:           c.locator(),
		Logger:            logger,
	}, nil
}

func (c *Config) locator() auth.Locator {
	switch c.Client.Discovery {
	case DiscoveryProcessTable:
		return auth.ProcessTableLocator{}
	case DiscoveryLockfile:
		return &auth.LockfileLocator{Source: &auth.CommandLocator{
			GOOS:   runtime.GOOS,
			Legacy: c.Client.LegacyEnumeration,
			Shell:  c.Client.WindowsShell,
		}}
	default:
		return nil
	}
}

// SocketOptions builds event socket options around already located
// credentials.
func (c *Config) SocketOptions(creds *auth.Credentials, authOpts auth.Options, logger logr.Logger) socket.Options {
	return socket.Options{
		Credentials:      creds,
		Auth:             authOpts,
		MaxRetries:       c.Socket.MaxRetries,
		PollInterval:     c.Socket.PollInterval,
		HandshakeTimeout: c.Socket.HandshakeTimeout,
		Logger:           logger,
	}
}

func (c *Config) MonitorOptions(authOpts auth.Options, logger logr.Logger) liveness.Options {
	return liveness.Options{
		PollInterval: c.Monitor.PollInterval,
		Auth:         authOpts,
		Logger:       logger,
	}
}
