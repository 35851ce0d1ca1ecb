//go:build !windows

package scanner

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts cmd's process in its own process group, so that
// killProcessGroup can terminate the scanner binary and anything it
// forked (helper tools, subshells) in one signal.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends SIGKILL to the process group rooted at cmd's
// child, used when the scan timeout elapses.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
