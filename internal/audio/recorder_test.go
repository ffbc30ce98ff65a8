package audio_test

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/loopcap/internal/audio"
)

type notification struct {
	Event   string
	Payload any
}

type eventLog struct {
	mu     sync.Mutex
	events []notification
}

func (l *eventLog) Notify(event string, payload any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, notification{event, payload})
}

func (l *eventLog) all() []notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]notification, len(l.events))
	copy(out, l.events)
	return out
}

func (l *eventLog) names() []string {
	var out []string
	for _, n := range l.all() {
		out = append(out, n.Event)
	}
	return out
}

func (l *eventLog) count(event string) int {
	c := 0
	for _, n := range l.all() {
		if n.Event == event {
			c++
		}
	}
	return c
}

func testRecorderConfig(t *testing.T) audio.RecorderConfig {
	return audio.RecorderConfig{
		Format:          audio.DefaultFormat(),
		SessionDuration: 20 * time.Millisecond,
		PollInterval:    5 * time.Millisecond,
		OutputDir:       t.TempDir(),
	}
}

var recordName = regexp.MustCompile(`^record_\d{8}_\d{6}(_\d+)?\.wav$`)

func TestRecorder_WritesWAV(t *testing.T) {
	events := &eventLog{}
	cfg := testRecorderConfig(t)
	rec := audio.NewRecorder(newBackend(), cfg, events)

	filename, err := rec.Record(context.Background(), speakers.ID)
	require.NoError(t, err)

	assert.Equal(t, cfg.OutputDir, filepath.Dir(filename))
	assert.Regexp(t, recordName, filepath.Base(filename))

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	require.Greater(t, len(data), 44)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, uint32(len(data)-8), binary.LittleEndian.Uint32(data[4:8]))

	names := events.names()
	require.NotEmpty(t, names)
	assert.Equal(t, audio.EventRecordingStarted, names[0])
	assert.Equal(t, audio.EventRecordingFinished, names[len(names)-1])
	for _, n := range names[1 : len(names)-1] {
		assert.Equal(t, audio.EventRecordingProgress, n)
	}

	all := events.all()
	assert.Equal(t, filename, all[len(all)-1].Payload)
	for _, n := range all {
		if n.Event == audio.EventRecordingProgress {
			p := n.Payload.(float64)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 100.0)
		}
	}
}

func TestRecorder_FilenameCollision(t *testing.T) {
	cfg := testRecorderConfig(t)
	rec := audio.NewRecorder(newBackend(), cfg, nil)

	first, err := rec.Record(context.Background(), speakers.ID)
	require.NoError(t, err)
	second, err := rec.Record(context.Background(), speakers.ID)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.FileExists(t, first)
	assert.FileExists(t, second)
}

func TestRecorder_UnknownDevice(t *testing.T) {
	events := &eventLog{}
	rec := audio.NewRecorder(newBackend(), testRecorderConfig(t), events)

	_, err := rec.Record(context.Background(), "{gone}")
	require.ErrorIs(t, err, audio.ErrDeviceNotFound)

	all := events.all()
	require.Len(t, all, 1)
	assert.Equal(t, audio.EventRecordingError, all[0].Event)
	assert.Contains(t, all[0].Payload, "{gone}")
}

func TestRecorder_ReadFailureStopsStream(t *testing.T) {
	backend := newBackend()
	backend.ReadErrAfter = 1
	events := &eventLog{}
	cfg := testRecorderConfig(t)
	cfg.SessionDuration = time.Second
	rec := audio.NewRecorder(backend, cfg, events)

	_, err := rec.Record(context.Background(), speakers.ID)
	require.ErrorIs(t, err, audio.ErrStreamRead)

	assert.True(t, backend.Streams()[0].Stopped())
	assert.Equal(t, 1, events.count(audio.EventRecordingError))
	assert.Equal(t, 0, events.count(audio.EventRecordingFinished))

	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecorder_RecordAsync(t *testing.T) {
	done := make(chan string, 1)
	notifier := audio.NotifierFunc(func(event string, payload any) {
		if event == audio.EventRecordingFinished {
			done <- payload.(string)
		}
	})
	rec := audio.NewRecorder(newBackend(), testRecorderConfig(t), notifier)

	rec.RecordAsync(speakers.ID)

	select {
	case filename := <-done:
		assert.FileExists(t, filename)
	case <-time.After(5 * time.Second):
		t.Fatal("recording_finished not observed")
	}
}

func TestRecorder_Defaults(t *testing.T) {
	rec := audio.NewRecorder(newBackend(), audio.RecorderConfig{}, nil)
	cfg := rec.Config()
	assert.Equal(t, audio.DefaultSessionDuration, cfg.SessionDuration)
	assert.Equal(t, audio.DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, audio.DefaultFormat(), cfg.Format)
}

func TestMultiNotifier(t *testing.T) {
	a, b := &eventLog{}, &eventLog{}
	audio.MultiNotifier{a, nil, b}.Notify(audio.EventRecordingStarted, nil)
	assert.Equal(t, []string{audio.EventRecordingStarted}, a.names())
	assert.Equal(t, []string{audio.EventRecordingStarted}, b.names())
}

var errFlaky = errors.New("flaky")
