package auth

import (
	"regexp"
	"strconv"
	"strings"
)

// Flag values are captured up to the first character that cannot belong to
// a token, which handles both `--flag=value` and `"--flag=value"` styles.
var (
	portRe     = regexp.MustCompile(`--app-port=([\w-]+)`)
	passwordRe = regexp.MustCompile(`--remoting-auth-token=([\w-]+)`)
	pidRe      = regexp.MustCompile(`--app-pid=([\w-]+)`)
)

var flagMarkers = []string{"--app-port=", "--remoting-auth-token=", "--app-pid="}

// ParseProcessArgs extracts credentials from the command line of a client
// process. Each flag is matched line by line first, so a flag ending a `ps`
// line is not glued to the next line. When no line yields a valid value the
// text is matched again with line breaks removed, which rejoins flags split
// by tools that wrap long command lines.
func ParseProcessArgs(raw string, unsafe bool, certificate string) (Credentials, error) {
	port := parsePositive(findFlag(portRe, raw, isPositive))
	password := findFlag(passwordRe, raw, isNonEmpty)
	pid := parsePositive(findFlag(pidRe, raw, isPositive))

	if port == 0 || password == "" || pid == 0 {
		return Credentials{}, &ProcessArgsParsingError{
			Raw:      raw,
			Port:     port,
			Password: password,
			PID:      pid,
		}
	}

	return Credentials{
		Port:        port,
		Password:    password,
		PID:         pid,
		Certificate: ResolveCertificate(certificate, unsafe),
	}, nil
}

// findFlag returns the first valid value of re per line, then the value
// found in the unwrapped text, valid or not, for error reporting.
func findFlag(re *regexp.Regexp, raw string, valid func(string) bool) string {
	for _, line := range strings.Split(raw, "\n") {
		if v := submatch(re, strings.TrimSuffix(line, "\r")); valid(v) {
			return v
		}
	}
	return submatch(re, strings.NewReplacer("\r", "", "\n", "").Replace(raw))
}

func isPositive(s string) bool { return parsePositive(s) > 0 }

func isNonEmpty(s string) bool { return s != "" }

// ParseCredentials accepts either process command line output or lockfile
// contents. Text that has neither shape means no client was running when it
// was captured, for instance `ps | grep` matching only itself.
func ParseCredentials(raw string, unsafe bool, certificate string) (Credentials, error) {
	if hasClientFlags(raw) {
		return ParseProcessArgs(raw, unsafe, certificate)
	}
	if isLockfile(raw) {
		lf, err := ParseLockfile(raw)
		if err != nil {
			return Credentials{}, err
		}
		return lf.Credentials(unsafe, certificate), nil
	}
	return Credentials{}, ErrClientNotFound
}

func hasClientFlags(raw string) bool {
	for _, marker := range flagMarkers {
		if strings.Contains(raw, marker) {
			return true
		}
	}
	return false
}

func submatch(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// parsePositive accepts only a non-empty run of decimal digits with a value
// above zero. Anything else yields 0.
func parsePositive(s string) int {
	if s == "" {
		return 0
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
