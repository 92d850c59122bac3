//go:build !windows

package lock

import (
	"errors"
	"os"
	"syscall"
)

// pidAlive probes pid with signal 0. EPERM means the process exists but
// belongs to another user.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
