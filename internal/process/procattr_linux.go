//go:build linux

package process

import (
	"os/exec"
	"syscall"
)

// configureCommand runs the helper in its own process group and has the
// kernel SIGKILL it if we die without running Close.
func configureCommand(cmd *exec.Cmd, _ bool) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pgid:      0,
		Pdeathsig: syscall.SIGKILL,
	}
}
