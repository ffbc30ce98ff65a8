package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/loopcap/internal/config"
	"github.com/audiolibrelab/loopcap/internal/flagstore"
	"github.com/audiolibrelab/loopcap/internal/process"
)

type scriptedSpawner struct {
	fail  map[process.Kind]bool
	specs []process.Spec
}

func (s *scriptedSpawner) Spawn(spec process.Spec) (*process.Handle, error) {
	s.specs = append(s.specs, spec)
	if s.fail[spec.Kind] {
		return nil, fmt.Errorf("%w: %s", process.ErrSpawn, spec.Command)
	}
	return &process.Handle{Kind: spec.Kind}, nil
}

type staticFlag struct {
	dir string
	err error
}

func (f staticFlag) Read() (string, error) { return f.dir, f.err }

func TestStartHelpers_AllStarted(t *testing.T) {
	cfg := config.Default().Helpers
	cfg.FileMonitor.Args = []string{"--model", "base"}
	spawner := &scriptedSpawner{}

	started := StartHelpers(cfg, spawner, staticFlag{dir: "/tmp/out"})
	require.Len(t, started, 3)
	require.Len(t, spawner.specs, 3)

	assert.Equal(t, process.KindBackend, spawner.specs[0].Kind)
	assert.False(t, spawner.specs[0].Visible)

	monitor := spawner.specs[1]
	assert.Equal(t, process.KindFileMonitor, monitor.Kind)
	assert.Equal(t, []string{"--model", "base", "--monitor-dir", "/tmp/out"}, monitor.Args)
	assert.True(t, monitor.Visible)

	assert.Equal(t, process.KindMonitorGUI, spawner.specs[2].Kind)
}

func TestStartHelpers_FailuresAreNotFatal(t *testing.T) {
	cfg := config.Default().Helpers
	cfg.Release = true
	spawner := &scriptedSpawner{fail: map[process.Kind]bool{process.KindBackend: true, process.KindFileMonitor: true}}

	started := StartHelpers(cfg, spawner, staticFlag{dir: "/tmp/out"})
	require.Len(t, started, 1)
	assert.Equal(t, process.KindMonitorGUI, started[0].Kind)
}

func TestStartHelpers_NoFlagSkipsFileMonitor(t *testing.T) {
	cfg := config.Default().Helpers
	cfg.MonitorGUI.Enabled = false
	spawner := &scriptedSpawner{}

	started := StartHelpers(cfg, spawner, staticFlag{err: flagstore.ErrFlagNotFound})
	require.Len(t, started, 1)
	assert.Equal(t, process.KindBackend, spawner.specs[0].Kind)
	assert.Len(t, spawner.specs, 1)
}
