package transport

import "strings"

// NormalizePath strips every leading slash and prepends exactly one, so
// "a", "/a" and "//a" all name the same endpoint.
func NormalizePath(path string) string {
	return "/" + strings.TrimLeft(path, "/")
}
