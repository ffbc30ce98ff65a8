// Package miniaudio implements audio.Backend on top of miniaudio through
// github.com/gen2brain/malgo. On Windows it opens render endpoints in WASAPI
// loopback mode; elsewhere it captures the monitor sources exposed by the
// sound server.
package miniaudio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/audiolibrelab/loopcap/internal/audio"
)

// Backend owns one miniaudio context. It is safe for concurrent use.
type Backend struct {
	ctx *malgo.AllocatedContext

	mu      sync.Mutex
	devices map[string]*malgo.DeviceInfo
}

// New initializes a miniaudio context on the platform loopback backends.
func New() (*Backend, error) {
	ctx, err := malgo.InitContext(contextBackends, malgo.ContextConfig{}, func(message string) {
		slog.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", audio.ErrEnumeration, err)
	}
	return &Backend{ctx: ctx, devices: map[string]*malgo.DeviceInfo{}}, nil
}

// Close releases the miniaudio context. Streams must be closed first.
func (b *Backend) Close() error {
	err := b.ctx.Uninit()
	b.ctx.Free()
	return err
}

func (b *Backend) Type() audio.BackendType { return audio.BackendTypeMiniaudio }

// Devices enumerates the loopback-capable endpoints and remembers the
// snapshot so Open can map an id back to a miniaudio device id.
func (b *Backend) Devices() ([]audio.AudioDevice, error) {
	infos, err := b.ctx.Devices(enumerateType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", audio.ErrEnumeration, err)
	}

	snapshot := make(map[string]*malgo.DeviceInfo, len(infos))
	devices := make([]audio.AudioDevice, 0, len(infos))
	for i := range infos {
		info := &infos[i]
		if !isLoopbackCandidate(info) {
			continue
		}
		id := info.ID.String()
		snapshot[id] = info
		devices = append(devices, audio.AudioDevice{ID: id, Name: info.Name()})
	}

	b.mu.Lock()
	b.devices = snapshot
	b.mu.Unlock()
	return devices, nil
}

// Open initializes a shared-mode capture device for the endpoint. The
// device is not started.
func (b *Backend) Open(device audio.AudioDevice, format audio.AudioFormat) (audio.Stream, error) {
	b.mu.Lock()
	info, ok := b.devices[device.ID]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", audio.ErrDeviceNotFound, device.ID)
	}

	want, err := sampleFormat(format)
	if err != nil {
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(captureType)
	cfg.Capture.Format = want
	cfg.Capture.Channels = uint32(format.Channels)
	cfg.Capture.DeviceID = info.ID.Pointer()
	cfg.Capture.ShareMode = malgo.Shared
	cfg.SampleRate = format.SampleRate
	cfg.Alsa.NoMMap = 1

	s := &stream{
		ready: make(chan struct{}, 1),
		name:  device.Name,
	}
	dev, err := malgo.InitDevice(b.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: s.onData,
		Stop: s.onStop,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", audio.ErrDeviceInit, err)
	}

	if got := dev.CaptureFormat(); got != want {
		dev.Uninit()
		return nil, fmt.Errorf("%w: device delivers %v samples", audio.ErrFormatNegotiation, got)
	}
	if dev.CaptureChannels() != uint32(format.Channels) || dev.SampleRate() != format.SampleRate {
		dev.Uninit()
		return nil, fmt.Errorf("%w: device negotiated %d Hz / %d ch", audio.ErrFormatNegotiation,
			dev.SampleRate(), dev.CaptureChannels())
	}

	s.dev = dev
	slog.Debug("Opened miniaudio capture device", "device", device.Name, "format", format.String())
	return s, nil
}

func sampleFormat(format audio.AudioFormat) (malgo.FormatType, error) {
	switch {
	case format.SampleKind == audio.SampleFloat && format.BitsPerSample == 32:
		return malgo.FormatF32, nil
	case format.SampleKind == audio.SampleInt && format.BitsPerSample == 16:
		return malgo.FormatS16, nil
	case format.SampleKind == audio.SampleInt && format.BitsPerSample == 24:
		return malgo.FormatS24, nil
	case format.SampleKind == audio.SampleInt && format.BitsPerSample == 32:
		return malgo.FormatS32, nil
	}
	return malgo.FormatUnknown, fmt.Errorf("%w: %s", audio.ErrFormatNegotiation, format)
}

var errDeviceStopped = errors.New("capture device stopped unexpectedly")

// stream buffers frames delivered on the miniaudio callback thread until the
// drain loop picks them up.
type stream struct {
	dev   *malgo.Device
	name  string
	ready chan struct{}

	mu      sync.Mutex
	pending []byte
	running bool
	lost    bool
}

func (s *stream) onData(_, input []byte, _ uint32) {
	s.mu.Lock()
	s.pending = append(s.pending, input...)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// onStop fires for both requested and spontaneous stops; only the latter is
// an error.
func (s *stream) onStop() {
	s.mu.Lock()
	if s.running {
		s.lost = true
	}
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *stream) Start() error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	if err := s.dev.Start(); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", audio.ErrStreamStart, err)
	}
	return nil
}

func (s *stream) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.ready:
		return true
	case <-timer.C:
		return false
	}
}

func (s *stream) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.pending
	s.pending = nil
	if s.lost && len(data) == 0 {
		return nil, fmt.Errorf("%w: %s: %w", audio.ErrStreamRead, s.name, errDeviceStopped)
	}
	return data, nil
}

func (s *stream) Stop() error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if err := s.dev.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device %s: %w", s.name, err)
	}
	return nil
}

func (s *stream) Close() error {
	s.dev.Uninit()
	return nil
}
