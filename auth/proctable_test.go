package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
)

type fakeProcess struct {
	name    string
	args    []string
	argsErr error
}

func (p fakeProcess) NameWithContext(context.Context) (string, error) {
	return p.name, nil
}

func (p fakeProcess) CmdlineSliceWithContext(context.Context) ([]string, error) {
	return p.args, p.argsErr
}

func processTable(procs ...fakeProcess) ProcessTableLocator {
	return ProcessTableLocator{list: func(context.Context) ([]processEntry, error) {
		out := make([]processEntry, len(procs))
		for i, p := range procs {
			out[i] = p
		}
		return out, nil
	}}
}

func TestProcessTableLocator(t *testing.T) {
	client := fakeProcess{
		name: "LeagueClientUx.exe",
		args: []string{`C:\Riot Games\LeagueClientUx.exe`, "--app-port=12345", "--remoting-auth-token=tok", "--app-pid=1234"},
	}
	denied := fakeProcess{name: "LeagueClientUx", argsErr: fmt.Errorf("reading cmdline: %w", os.ErrPermission)}
	zombie := fakeProcess{name: "LeagueClientUx", args: []string{}}
	other := fakeProcess{name: "bash", args: []string{"bash", "--app-port=1"}}

	tests := []struct {
		name    string
		procs   []fakeProcess
		want    string
		wantErr error
	}{
		{"found", []fakeProcess{other, client}, `C:\Riot Games\LeagueClientUx.exe --app-port=12345 --remoting-auth-token=tok --app-pid=1234`, nil},
		{"found next to denied", []fakeProcess{denied, client}, `C:\Riot Games\LeagueClientUx.exe --app-port=12345 --remoting-auth-token=tok --app-pid=1234`, nil},
		{"none running", []fakeProcess{other}, "", ErrClientNotFound},
		{"empty command line", []fakeProcess{zombie}, "", ErrClientNotFound},
		{"other read error", []fakeProcess{{name: "LeagueClientUx", argsErr: errors.New("no such process")}}, "", ErrClientNotFound},
		{"permission denied", []fakeProcess{zombie, denied}, "", ErrClientElevatedPerms},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := processTable(tt.procs...).Locate(context.Background(), DefaultProcessName)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Locate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Locate() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Locate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProcessTableLocator_ListError(t *testing.T) {
	l := ProcessTableLocator{list: func(context.Context) ([]processEntry, error) {
		return nil, errors.New("boom")
	}}
	if _, err := l.Locate(context.Background(), DefaultProcessName); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("Locate() error = %v, want ErrClientNotFound", err)
	}
}
