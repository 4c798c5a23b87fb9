//go:build windows

package runner

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup kills the process directly on Windows.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
