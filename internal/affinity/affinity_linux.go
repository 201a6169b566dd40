//go:build linux
// +build linux

// File: internal/affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific implementation for setting thread CPU affinity via
// pthread_setaffinity_np. The event loop's single OS thread is pinned once
// at startup (cmd/ringhttpd's --pin-cpu), before the ring's shared cursors
// start seeing traffic.

package affinity

/*
#define _GNU_SOURCE
#include <sched.h>
#include <pthread.h>
#include <errno.h>

// pin_thread_to_cpu restricts the calling thread's affinity mask to the
// single given core.
static int pin_thread_to_cpu(int cpu) {
	cpu_set_t mask;
	CPU_ZERO(&mask);
	CPU_SET(cpu, &mask);
	return pthread_setaffinity_np(pthread_self(), sizeof(mask), &mask);
}
*/
import "C"
import "fmt"

// setAffinityPlatform pins the calling OS thread to cpuID via
// pthread_setaffinity_np.
func setAffinityPlatform(cpuID int) error {
	if ret := C.pin_thread_to_cpu(C.int(cpuID)); ret != 0 {
		return fmt.Errorf("affinity: pthread_setaffinity_np(cpu=%d) failed with code %d", cpuID, ret)
	}
	return nil
}
