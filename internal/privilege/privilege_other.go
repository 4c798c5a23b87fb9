//go:build !unix && !windows

package privilege

import "os"

// IsElevated returns true if the process runs with an effective UID of 0.
// Platforms without user IDs report -1 and are never elevated.
func IsElevated() bool {
	return os.Geteuid() == 0
}
