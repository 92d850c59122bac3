//go:build windows

package lock

import "os"

// pidAlive relies on FindProcess opening a handle, which fails for exited
// processes on windows.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
