//go:build windows
// +build windows

// File: internal/affinity/affinity_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows-specific implementation for setting thread CPU affinity. Not
// exercised by the core loop (spec.md §1 is Linux-only); kept so
// internal/affinity builds as a normal Go package on every GOOS the rest
// of the module's tooling might run under.

package affinity

import (
	"fmt"
	"syscall"
)

// setAffinityPlatform pins the calling OS thread to cpuID via
// SetThreadAffinityMask.
func setAffinityPlatform(cpuID int) error {
	kernel32 := syscall.NewLazyDLL("kernel32.dll")
	setThreadAffinityMask := kernel32.NewProc("SetThreadAffinityMask")
	getCurrentThread := kernel32.NewProc("GetCurrentThread")

	thread, _, _ := getCurrentThread.Call()
	mask := uintptr(1) << uint(cpuID)
	if ret, _, err := setThreadAffinityMask.Call(thread, mask); ret == 0 {
		return fmt.Errorf("affinity: SetThreadAffinityMask(cpu=%d) failed: %w", cpuID, err)
	}
	return nil
}
