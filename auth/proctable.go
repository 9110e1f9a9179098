package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// processEntry is the part of *process.Process the locator reads.
type processEntry interface {
	NameWithContext(ctx context.Context) (string, error)
	CmdlineSliceWithContext(ctx context.Context) ([]string, error)
}

// ProcessTableLocator finds the client by walking the OS process table
// instead of shelling out. A matching process whose command line is denied
// to the caller is reported as ErrClientElevatedPerms; one with an empty
// command line (exiting or a zombie) is skipped.
type ProcessTableLocator struct {
	list func(ctx context.Context) ([]processEntry, error)
}

func (l ProcessTableLocator) Locate(ctx context.Context, name string) (string, error) {
	list := l.list
	if list == nil {
		list = systemProcesses
	}

	procs, err := list(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: listing processes: %w", ErrClientNotFound, err)
	}

	denied := false
	for _, p := range procs {
		exe, err := p.NameWithContext(ctx)
		if err != nil || !matchesProcessName(exe, name) {
			continue
		}

		args, err := p.CmdlineSliceWithContext(ctx)
		if err != nil {
			if errors.Is(err, os.ErrPermission) {
				denied = true
			}
			continue
		}

		cmdline := joinArgs(args)
		if hasClientFlags(cmdline) {
			return cmdline, nil
		}
	}

	if denied {
		return "", ErrClientElevatedPerms
	}
	return "", ErrClientNotFound
}

func systemProcesses(ctx context.Context) ([]processEntry, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]processEntry, len(procs))
	for i, p := range procs {
		out[i] = p
	}
	return out, nil
}

func matchesProcessName(exe, name string) bool {
	base := strings.TrimSuffix(filepath.Base(exe), ".exe")
	return strings.EqualFold(base, name)
}

func joinArgs(args []string) string {
	cleaned := make([]string, 0, len(args))
	for _, a := range args {
		if a != "" {
			cleaned = append(cleaned, a)
		}
	}
	return strings.Join(cleaned, " ")
}
