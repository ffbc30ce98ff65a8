package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/loopcap/internal/audio"
	"github.com/audiolibrelab/loopcap/internal/audio/audiotest"
	"github.com/audiolibrelab/loopcap/internal/config"
	"github.com/audiolibrelab/loopcap/internal/flagstore"
	"github.com/audiolibrelab/loopcap/internal/process"
)

const deviceID = "{0.0.0.00000000}.{speakers}"

type nopSpawner struct{ specs []process.Spec }

func (n *nopSpawner) Spawn(spec process.Spec) (*process.Handle, error) {
	n.specs = append(n.specs, spec)
	return &process.Handle{Kind: spec.Kind}, nil
}

func newTestService(t *testing.T) (*LoopcapService, *audiotest.Backend, *flagstore.Store) {
	t.Helper()

	cfg := config.Default()
	cfg.Audio.SessionDuration = 20 * time.Millisecond
	cfg.Audio.PollInterval = 5 * time.Millisecond
	cfg.Output.Directory = t.TempDir()

	backend := &audiotest.Backend{DeviceList: []audio.AudioDevice{{ID: deviceID, Name: "Speakers"}}}
	flags := flagstore.New(filepath.Join(t.TempDir(), "running_flag.tmp"))

	svc, err := New(cfg, backend, flags, &nopSpawner{}, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc, backend, flags
}

func TestService_RecordSyncAndList(t *testing.T) {
	svc, _, _ := newTestService(t)

	filename, err := svc.RecordSync(context.Background(), deviceID)
	require.NoError(t, err)

	recordings, err := svc.ListRecordings()
	require.NoError(t, err)
	require.Len(t, recordings, 1)
	assert.Equal(t, filepath.Base(filename), recordings[0].Name)
	assert.NotEmpty(t, recordings[0].SizeHuman)
	assert.Empty(t, svc.GetLastError())
}

func TestService_ErrorEventsSetLastError(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.RecordSync(context.Background(), "{unplugged}")
	require.ErrorIs(t, err, audio.ErrDeviceNotFound)
	assert.True(t, strings.HasPrefix(svc.GetLastError(), audio.EventRecordingError))

	_, err = svc.RecordSync(context.Background(), deviceID)
	require.NoError(t, err)
	assert.Empty(t, svc.GetLastError())
}

func TestService_ContinuousStartStop(t *testing.T) {
	svc, _, _ := newTestService(t)

	assert.ErrorIs(t, svc.StopContinuous(""), audio.ErrNotRunning)

	h, err := svc.StartContinuous(deviceID)
	require.NoError(t, err)

	status := svc.GetContinuousStatus()
	assert.Equal(t, h.ID, status.HandleID)
	assert.Equal(t, deviceID, status.DeviceID)

	assert.ErrorIs(t, svc.StopContinuous("not-a-handle"), audio.ErrNotRunning)
	require.NoError(t, svc.StopContinuous(h.ID))

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("continuous recording did not stop")
	}
	assert.Equal(t, audio.ControllerIdle, svc.GetContinuousStatus().State)
}

func TestService_OutputDirAndTranscripts(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetOutputDir()
	assert.ErrorIs(t, err, flagstore.ErrFlagNotFound)
	_, err = svc.ListTranscripts()
	assert.ErrorIs(t, err, flagstore.ErrFlagNotFound)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "call.txt"), []byte("hi there"), 0644))
	require.NoError(t, svc.SetOutputDir(dir))

	got, err := svc.GetOutputDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	files, err := svc.ListTranscripts()
	require.NoError(t, err)
	require.Len(t, files, 1)

	text, err := svc.ReadTranscript("call.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)

	assert.Error(t, svc.SetOutputDir("  "))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "3.4 MB", formatBytes(3528044))
}
