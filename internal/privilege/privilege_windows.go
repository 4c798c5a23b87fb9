//go:build windows

package privilege

import "golang.org/x/sys/windows"

// IsElevated returns true if the process token is elevated (run as administrator).
func IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
