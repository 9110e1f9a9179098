package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// Locator returns raw text describing a running client process: its command
// line or its lockfile contents.
type Locator interface {
	Locate(ctx context.Context, name string) (string, error)
}

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

const (
	ShellPowerShell = "powershell"
	ShellCmd        = "cmd"
)

// Command is an executable plus its arguments.
type Command struct {
	Path string
	Args []string
}

func (c Command) String() string {
	return c.Path + " " + strings.Join(c.Args, " ")
}

var processNameRe = regexp.MustCompile(`^[\w.-]+$`)

// BuildCommand returns the process enumeration command for goos. The name
// is interpolated into a shell script, so it is restricted to word
// characters, dots and dashes.
func BuildCommand(goos, name string, legacy bool, shell string) (Command, error) {
	if !processNameRe.MatchString(name) {
		return Command{}, fmt.Errorf("invalid process name %q", name)
	}

	if goos != "windows" {
		return Command{Path: "sh", Args: []string{"-c", fmt.Sprintf("ps x -o args | grep '%s'", name)}}, nil
	}

	var script string
	if legacy {
		script = fmt.Sprintf("wmic process where caption='%s.exe' get commandline", name)
	} else {
		script = fmt.Sprintf(`Get-CimInstance -Query "SELECT * from Win32_Process WHERE name LIKE '%s.exe'" | Select-Object -ExpandProperty CommandLine`, name)
	}
	return windowsShell(shell, script), nil
}

func windowsShell(shell, script string) Command {
	if shell == ShellCmd {
		return Command{Path: "cmd", Args: []string{"/C", script}}
	}
	return Command{Path: "powershell", Args: []string{"-NoProfile", "-NonInteractive", "-Command", script}}
}

// elevationCheck lists processes with the given name that expose neither a
// handle nor an image path, which is how an elevated process looks to an
// unelevated caller. Requires PowerShell 3.0.
func elevationCheck(name string) Command {
	script := fmt.Sprintf(`if ((Get-Process -Name %s -ErrorAction SilentlyContinue | Where-Object {!$_.Handle -and !$_.Path})) {Write-Output "True"} else {Write-Output "False"}`, name)
	return windowsShell(ShellPowerShell, script)
}

// CommandLocator finds the client by running the platform's process
// enumeration command and returning its output.
type CommandLocator struct {
	GOOS   string
	Legacy bool
	// Shell selects the Windows shell, ShellPowerShell (default) or ShellCmd.
	Shell string
	Run   Runner
}

func (l *CommandLocator) Locate(ctx context.Context, name string) (string, error) {
	cmd, err := BuildCommand(l.GOOS, name, l.Legacy, l.Shell)
	if err != nil {
		return "", err
	}

	run := l.Run
	if run == nil {
		run = execRunner
	}

	out, runErr := run(ctx, cmd.Path, cmd.Args...)
	if runErr == nil && hasClientFlags(string(out)) {
		return string(out), nil
	}

	if l.canDetectElevation() && l.isElevated(ctx, run, name) {
		return "", ErrClientElevatedPerms
	}
	if runErr != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrClientNotFound, cmd.Path, runErr)
	}
	return "", ErrClientNotFound
}

func (l *CommandLocator) canDetectElevation() bool {
	return l.GOOS == "windows" && (l.Shell == "" || l.Shell == ShellPowerShell)
}

func (l *CommandLocator) isElevated(ctx context.Context, run Runner, name string) bool {
	check := elevationCheck(name)
	out, err := run(ctx, check.Path, check.Args...)
	if err != nil {
		return false
	}
	return strings.Contains(string(out), "True")
}

var installDirRe = regexp.MustCompile(`--install-directory=(.*?)(?:"| --|$)`)

// LockfileLocator reads the lockfile from the install directory found in the
// command line returned by Source.
type LockfileLocator struct {
	Source Locator
}

func (l *LockfileLocator) Locate(ctx context.Context, name string) (string, error) {
	out, err := l.Source.Locate(ctx, name)
	if err != nil {
		return "", err
	}

	text := strings.NewReplacer("\r", "", "\n", "").Replace(out)
	m := installDirRe.FindStringSubmatch(text)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return "", fmt.Errorf("%w: no install directory in process arguments", ErrClientNotFound)
	}

	data, err := os.ReadFile(filepath.Join(strings.TrimSpace(m[1]), "lockfile"))
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return "", fmt.Errorf("%w: %w", ErrClientElevatedPerms, err)
		}
		return "", fmt.Errorf("%w: %w", ErrClientNotFound, err)
	}
	return string(data), nil
}
