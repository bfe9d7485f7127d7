//go:build !linux && !windows
// +build !linux,!windows

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub for platforms without thread affinity support.

package affinity

import "github.com/momentics/spool/api"

// setAffinityPlatform reports that pinning is unavailable here.
func setAffinityPlatform(cpuID int) error {
	return api.ErrAffinityNotSupported
}
