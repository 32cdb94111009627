//go:build unix

package lock

import (
	"errors"
	"syscall"
)

// OSLiveness probes the local PID table with a null signal.
type OSLiveness struct{}

// Alive sends signal 0 to pid. ESRCH means no such process; EPERM means a
// process exists that we may not signal, which still counts as alive.
func (OSLiveness) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	if errors.Is(err, syscall.ESRCH) {
		return false
	}
	return true
}
