//go:build windows

package lock

import "golang.org/x/sys/windows"

// OSLiveness probes the local PID table.
type OSLiveness struct{}

func (OSLiveness) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		// Access denied still implies the process exists.
		return err == windows.ERROR_ACCESS_DENIED
	}
	_ = windows.CloseHandle(h)
	return true
}
