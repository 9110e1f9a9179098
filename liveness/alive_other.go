//go:build !unix

package liveness

import (
	"github.com/shirou/gopsutil/v3/process"
)

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}
