//go:build windows

package runner

import "os/exec"

// setProcessGroup is a no-op on Windows; CommandContext kills the direct
// child on cancellation.
func setProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup kills the direct child.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
