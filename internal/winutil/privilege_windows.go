//go:build windows

package winutil

import "golang.org/x/sys/windows"

// IsElevated reports whether the process token carries administrator rights.
// Event-log and registry exports fail with access-denied otherwise, so this
// is checked before any collection I/O happens.
func IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
