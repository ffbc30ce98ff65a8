//go:build !windows && !linux

package process

import (
	"os/exec"
	"syscall"
)

// configureCommand runs the helper in its own process group.
func configureCommand(cmd *exec.Cmd, _ bool) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}
}
