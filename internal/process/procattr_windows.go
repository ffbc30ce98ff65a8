//go:build windows

package process

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"unsafe"

	ps "github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/windows"
)

// newCommand runs visible helpers through `start /wait` so they get a console
// window of their own that shows their output. Go always hands a child
// explicit std handles, which would leave a CREATE_NEW_CONSOLE window blank.
func newCommand(path string, spec Spec) *exec.Cmd {
	if !spec.Visible {
		return exec.Command(path, spec.Args...)
	}
	return exec.Command(comspec(), consoleArgs(path, spec)...)
}

func consoleArgs(path string, spec Spec) []string {
	args := []string{"/c", "start", "loopcap " + spec.Kind.String(), "/wait", path}
	return append(args, spec.Args...)
}

func comspec() string {
	if c := os.Getenv("ComSpec"); c != "" {
		return c
	}
	return "cmd.exe"
}

// The wrapper shell itself never shows a window; `start` opens the helper's.
func configureCommand(cmd *exec.Cmd, _ bool) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NO_WINDOW,
		HideWindow:    true,
	}
}

// attachOutput logs whatever reaches our pipes: the helper's output when it
// is hidden, only the wrapper shell's when it is visible.
func attachOutput(cmd *exec.Cmd, spec Spec) {
	out := newLogWriter(spec.Kind)
	cmd.Stdout = out
	cmd.Stderr = out
}

// jobObject kills every assigned process when its last handle is closed,
// which also happens when our process dies for any reason.
type jobObject struct {
	handle windows.Handle
}

func newProcessGroup() (processGroup, error) {
	h, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("CreateJobObject: %w", err)
	}

	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
		},
	}
	if _, err := windows.SetInformationJobObject(
		h,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	); err != nil {
		windows.CloseHandle(h)
		return nil, fmt.Errorf("SetInformationJobObject: %w", err)
	}
	return &jobObject{handle: h}, nil
}

func (j *jobObject) Add(p *os.Process) error {
	ph, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(p.Pid))
	if err != nil {
		return fmt.Errorf("OpenProcess: %w", err)
	}
	defer windows.CloseHandle(ph)

	if err := windows.AssignProcessToJobObject(j.handle, ph); err != nil {
		return fmt.Errorf("AssignProcessToJobObject: %w", err)
	}
	return nil
}

func (j *jobObject) Close() error {
	return windows.CloseHandle(j.handle)
}

// Windows has no portable console interrupt for an arbitrary child, so the
// interrupt is a kill.
func interrupt(cmd *exec.Cmd) error {
	return kill(cmd)
}

// kill takes the helper's descendants down first; a visible helper is a
// child of the `start` wrapper and would otherwise outlive it.
func kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	killDescendants(int32(cmd.Process.Pid))
	return cmd.Process.Kill()
}

func killDescendants(pid int32) {
	p, err := ps.NewProcess(pid)
	if err != nil {
		return
	}
	children, err := p.Children()
	if err != nil {
		return
	}
	for _, c := range children {
		killDescendants(c.Pid)
		if err := c.Kill(); err != nil {
			slog.Debug("Failed to kill helper child", "pid", c.Pid, "error", err)
		}
	}
}
