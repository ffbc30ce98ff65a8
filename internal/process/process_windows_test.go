//go:build windows

package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCommand_VisibleOpensConsole(t *testing.T) {
	spec := Spec{Kind: KindFileMonitor, Args: []string{"--monitor-dir", `C:\out`}, Visible: true}

	cmd := newCommand(`C:\tools\transcriber.exe`, spec)
	assert.Equal(t, []string{
		"/c", "start", "loopcap file_monitor", "/wait",
		`C:\tools\transcriber.exe`, "--monitor-dir", `C:\out`,
	}, cmd.Args[1:])
}

func TestNewCommand_HiddenRunsDirectly(t *testing.T) {
	cmd := newCommand(`C:\tools\backend.exe`, Spec{Kind: KindBackend, Args: []string{"--port", "5000"}})
	assert.Equal(t, `C:\tools\backend.exe`, cmd.Path)
	assert.Equal(t, []string{"--port", "5000"}, cmd.Args[1:])
}
