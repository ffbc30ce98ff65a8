//go:build !windows

package process

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func TestTerminate_Twice(t *testing.T) {
	sup, err := NewSupervisor()
	require.NoError(t, err)
	defer sup.Close()

	h, err := sup.Spawn(Spec{Kind: KindFileMonitor, Command: "sleep", Args: []string{"30"}})
	require.NoError(t, err)
	require.Len(t, sup.Live(), 1)

	require.NoError(t, sup.Terminate(h))
	assert.True(t, h.Exited())
	assert.Empty(t, sup.Live())

	assert.NoError(t, sup.Terminate(h))
}

func TestTerminate_KillsAfterGrace(t *testing.T) {
	sup, err := NewSupervisor(WithGracePeriod(200 * time.Millisecond))
	require.NoError(t, err)
	defer sup.Close()

	h, err := sup.Spawn(Spec{
		Kind:    KindBackend,
		Command: "sh",
		Args:    []string{"-c", `trap "" TERM; echo ready; sleep 30`},
	})
	require.NoError(t, err)

	// give the shell time to install its trap
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	require.NoError(t, sup.Terminate(h))
	assert.True(t, h.Exited())
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestClose_TerminatesEveryHelper(t *testing.T) {
	sup, err := NewSupervisor(WithGracePeriod(time.Second))
	require.NoError(t, err)

	a, err := sup.Spawn(Spec{Kind: KindFileMonitor, Command: "sleep", Args: []string{"30"}})
	require.NoError(t, err)
	b, err := sup.Spawn(Spec{Kind: KindMonitorGUI, Command: "sleep", Args: []string{"30"}, Visible: true})
	require.NoError(t, err)

	pids := []int{a.PID(), b.PID()}
	require.NoError(t, sup.Close())

	waitExited(t, a)
	waitExited(t, b)
	for _, pid := range pids {
		assert.False(t, alive(pid), "pid %d still alive", pid)
	}
	assert.Empty(t, sup.Live())

	// second close is a no-op
	assert.NoError(t, sup.Close())
}

func TestTerminate_AlreadyExited(t *testing.T) {
	sup, err := NewSupervisor()
	require.NoError(t, err)
	defer sup.Close()

	h, err := sup.Spawn(Spec{Kind: KindPlayer, Command: "true"})
	require.NoError(t, err)
	waitExited(t, h)

	assert.NoError(t, sup.Terminate(h))
	assert.Empty(t, sup.Live())
}

func TestAttachOutput_VisibleSharesTerminal(t *testing.T) {
	visible := newCommand("/bin/true", Spec{Kind: KindFileMonitor, Visible: true})
	attachOutput(visible, Spec{Kind: KindFileMonitor, Visible: true})
	assert.Same(t, os.Stdout, visible.Stdout)
	assert.Same(t, os.Stderr, visible.Stderr)

	hidden := newCommand("/bin/true", Spec{Kind: KindBackend})
	attachOutput(hidden, Spec{Kind: KindBackend})
	assert.IsType(t, &logWriter{}, hidden.Stdout)
}
