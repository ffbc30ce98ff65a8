//go:build !windows

package process

import (
	"os"
	"os/exec"
	"syscall"
)

func newCommand(path string, spec Spec) *exec.Cmd {
	return exec.Command(path, spec.Args...)
}

// attachOutput lets visible helpers share the controlling terminal. Hidden
// helpers write into the log.
func attachOutput(cmd *exec.Cmd, spec Spec) {
	if spec.Visible {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return
	}
	out := newLogWriter(spec.Kind)
	cmd.Stdout = out
	cmd.Stderr = out
}

type noopGroup struct{}

func (noopGroup) Add(*os.Process) error { return nil }
func (noopGroup) Close() error          { return nil }

// Setpgid already groups the helper with its children.
func newProcessGroup() (processGroup, error) { return noopGroup{}, nil }

// interrupt sends SIGTERM to the helper's whole process group.
func interrupt(cmd *exec.Cmd) error {
	return signalGroup(cmd, syscall.SIGTERM)
}

// kill sends SIGKILL to the helper's whole process group.
func kill(cmd *exec.Cmd) error {
	return signalGroup(cmd, syscall.SIGKILL)
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		return cmd.Process.Signal(sig)
	}
	return syscall.Kill(-pgid, sig)
}
