//go:build !linux && !windows
// +build !linux,!windows

// File: internal/affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// This module is Linux-only (spec.md §1): the server itself never runs on
// a platform landing here. This stub exists only so internal/affinity
// stays importable while cross-compiling tooling (go vet, IDE tooling) on
// a non-Linux, non-Windows workstation.

package affinity

import "fmt"

// setAffinityPlatform always fails: there is no CPU-affinity syscall
// wired up for this build target.
func setAffinityPlatform(cpuID int) error {
	return fmt.Errorf("affinity: cpu pinning is not implemented on this platform (requested cpu %d)", cpuID)
}
