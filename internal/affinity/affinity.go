// File: internal/affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for pinning the event-loop goroutine's OS thread to
// a single CPU core. Since the server loop is single-threaded and
// cooperative (spec.md §5), pinning it avoids cross-core cache-line
// bouncing on the ring's shared head/tail cursors. Platform-specific
// implementations live in separate files guarded by build tags.

package affinity

import "fmt"

// Pin locks the calling OS thread to cpuID. Callers must have already
// called runtime.LockOSThread, or the pin is meaningless once Go's
// scheduler migrates the goroutine to a different thread.
func Pin(cpuID int) error {
	if cpuID < 0 {
		return fmt.Errorf("affinity: cpu id must be non-negative, got %d", cpuID)
	}
	return setAffinityPlatform(cpuID)
}
