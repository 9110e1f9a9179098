package auth

import (
	"strings"
)

// Lockfile is the record the client writes to its install directory while
// running: `name:pid:port:token:protocol`.
type Lockfile struct {
	Name     string
	PID      int
	Port     int
	Password string
	Protocol string
}

const lockfileFields = 5

func isLockfile(raw string) bool {
	s := strings.TrimSpace(raw)
	return s != "" && strings.Count(s, ":") == lockfileFields-1 && !strings.ContainsAny(s, " \t\r\n")
}

// ParseLockfile parses lockfile contents. Malformed records return a
// *ProcessArgsParsingError carrying the fields that did parse.
func ParseLockfile(content string) (Lockfile, error) {
	raw := strings.TrimSpace(content)
	parts := strings.Split(raw, ":")
	if len(parts) != lockfileFields {
		return Lockfile{}, &ProcessArgsParsingError{Raw: content}
	}

	lf := Lockfile{
		Name:     parts[0],
		PID:      parsePositive(parts[1]),
		Port:     parsePositive(parts[2]),
		Password: parts[3],
		Protocol: parts[4],
	}
	if lf.PID == 0 || lf.Port == 0 || lf.Password == "" {
		return Lockfile{}, &ProcessArgsParsingError{
			Raw:      content,
			Port:     lf.Port,
			Password: lf.Password,
			PID:      lf.PID,
		}
	}
	return lf, nil
}

// Credentials converts the lockfile record, resolving the certificate the
// same way command line parsing does.
func (lf Lockfile) Credentials(unsafe bool, certificate string) Credentials {
	return Credentials{
		Port:        lf.Port,
		Password:    lf.Password,
		PID:         lf.PID,
		Certificate: ResolveCertificate(certificate, unsafe),
	}
}
