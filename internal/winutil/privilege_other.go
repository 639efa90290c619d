//go:build !windows

package winutil

import "os"

// IsElevated reports whether the process runs as root. On non-Windows hosts
// the same exports typically read protected system state, so the bar is the
// same: elevated or nothing.
func IsElevated() bool {
	return os.Geteuid() == 0
}
