package audio_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/loopcap/internal/audio"
	"github.com/audiolibrelab/loopcap/internal/audio/audiotest"
)

var speakers = audio.AudioDevice{ID: "{0.0.0.00000000}.{speakers}", Name: "Speakers"}

func newBackend() *audiotest.Backend {
	return &audiotest.Backend{
		DeviceList: []audio.AudioDevice{
			{ID: "{0.0.0.00000000}.{hdmi}", Name: "HDMI Output"},
			speakers,
		},
	}
}

func TestCatalog_Resolve(t *testing.T) {
	catalog := audio.NewCatalog(newBackend())

	device, err := catalog.Resolve(speakers.ID)
	require.NoError(t, err)
	assert.Equal(t, speakers.ID, device.ID)
	assert.Equal(t, "Speakers", device.Name)

	_, err = catalog.Resolve("{missing}")
	require.ErrorIs(t, err, audio.ErrDeviceNotFound)
	assert.Contains(t, err.Error(), "{missing}")
}

func TestCatalog_EnumerationError(t *testing.T) {
	backend := newBackend()
	backend.DevicesErr = errors.New("audio service unavailable")

	_, err := audio.NewCatalog(backend).ListDevices()
	assert.ErrorIs(t, err, audio.ErrEnumeration)

	_, err = audio.NewCatalog(backend).Resolve(speakers.ID)
	assert.ErrorIs(t, err, audio.ErrEnumeration)
}

func TestSession_Lifecycle(t *testing.T) {
	backend := newBackend()
	sess, err := audio.OpenSession(backend, speakers, audio.DefaultFormat(), audio.WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, audio.StateInitializing, sess.State())

	require.NoError(t, sess.Start())
	assert.Equal(t, audio.StateStreaming, sess.State())

	var calls int
	require.NoError(t, sess.DrainUntil(context.Background(), 30*time.Millisecond, func(time.Duration) { calls++ }))
	assert.Greater(t, calls, 0)

	data, err := sess.Stop()
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Equal(t, audio.StateStopped, sess.State())

	stream := backend.Streams()[0]
	assert.True(t, stream.Stopped())
	assert.True(t, stream.Closed())

	_, err = sess.Stop()
	assert.ErrorIs(t, err, audio.ErrInvalidState)
}

func TestSession_StopWithoutDrain(t *testing.T) {
	sess, err := audio.OpenSession(newBackend(), speakers, audio.DefaultFormat())
	require.NoError(t, err)
	require.NoError(t, sess.Start())

	data, err := sess.Stop()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(data), 0)
}

func TestSession_OpenErrors(t *testing.T) {
	backend := newBackend()
	backend.OpenErr = errors.New("device in use")

	_, err := audio.OpenSession(backend, speakers, audio.DefaultFormat())
	assert.ErrorIs(t, err, audio.ErrDeviceInit)

	bad := audio.DefaultFormat()
	bad.BitsPerSample = 16
	_, err = audio.OpenSession(newBackend(), speakers, bad)
	assert.ErrorIs(t, err, audio.ErrFormatNegotiation)
}

func TestSession_StartFailure(t *testing.T) {
	backend := newBackend()
	backend.StartErr = errors.New("endpoint unplugged")

	sess, err := audio.OpenSession(backend, speakers, audio.DefaultFormat())
	require.NoError(t, err)

	err = sess.Start()
	require.ErrorIs(t, err, audio.ErrStreamStart)
	assert.Equal(t, audio.StateFailed, sess.State())
	assert.True(t, backend.Streams()[0].Closed())

	_, err = sess.Stop()
	assert.ErrorIs(t, err, audio.ErrInvalidState)
}

func TestSession_ReadFailure(t *testing.T) {
	backend := newBackend()
	backend.ReadErrAfter = 2

	sess, err := audio.OpenSession(backend, speakers, audio.DefaultFormat(), audio.WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, sess.Start())

	err = sess.DrainUntil(context.Background(), time.Second, nil)
	require.ErrorIs(t, err, audio.ErrStreamRead)
	assert.Equal(t, audio.StateFailed, sess.State())
	assert.ErrorIs(t, sess.Err(), audio.ErrStreamRead)

	stream := backend.Streams()[0]
	assert.True(t, stream.Stopped())
	assert.True(t, stream.Closed())
}

func TestSession_DrainCancelled(t *testing.T) {
	sess, err := audio.OpenSession(newBackend(), speakers, audio.DefaultFormat())
	require.NoError(t, err)
	require.NoError(t, sess.Start())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = sess.DrainUntil(ctx, time.Minute, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, audio.StateStreaming, sess.State())

	sess.Abort(err)
	assert.Equal(t, audio.StateFailed, sess.State())
}

func TestSession_DrainBeforeStart(t *testing.T) {
	sess, err := audio.OpenSession(newBackend(), speakers, audio.DefaultFormat())
	require.NoError(t, err)

	err = sess.DrainUntil(context.Background(), time.Millisecond, nil)
	assert.ErrorIs(t, err, audio.ErrInvalidState)
}
