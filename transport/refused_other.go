//go:build !unix && !windows

package transport

func isConnectionRefused(error) bool {
	return false
}
