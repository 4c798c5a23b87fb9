//go:build !unix && !windows

package runner

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup kills the probe alone; there are no process groups here.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
