//go:build unix

package privilege

import "golang.org/x/sys/unix"

// IsElevated returns true if the process runs with an effective UID of 0.
func IsElevated() bool {
	return unix.Geteuid() == 0
}
