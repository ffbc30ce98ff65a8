// Package audiotest provides an in-memory audio.Backend for tests.
package audiotest

import (
	"errors"
	"sync"
	"time"

	"github.com/audiolibrelab/loopcap/internal/audio"
)

// Backend is a scriptable audio.Backend. Zero values produce a backend with
// no devices whose streams deliver Chunk on every wake.
type Backend struct {
	DeviceList []audio.AudioDevice
	DevicesErr error
	OpenErr    error
	StartErr   error

	// ReadErrAfter makes Read fail once a stream has served that many reads.
	// Zero disables the failure.
	ReadErrAfter int
	ReadErr      error

	// FailOpenOn makes the Nth call to Open (1-based) fail with OpenErr.
	// Zero means every Open fails when OpenErr is set.
	FailOpenOn int

	// Chunk is returned by each Read. Defaults to one 8-byte stereo float frame.
	Chunk []byte

	mu      sync.Mutex
	opens   int
	streams []*Stream
}

var errRead = errors.New("audiotest: read failed")

func (b *Backend) Devices() ([]audio.AudioDevice, error) {
	if b.DevicesErr != nil {
		return nil, b.DevicesErr
	}
	out := make([]audio.AudioDevice, len(b.DeviceList))
	copy(out, b.DeviceList)
	return out, nil
}

func (b *Backend) Open(device audio.AudioDevice, format audio.AudioFormat) (audio.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.opens++
	if b.OpenErr != nil && (b.FailOpenOn == 0 || b.FailOpenOn == b.opens) {
		return nil, b.OpenErr
	}

	chunk := b.Chunk
	if chunk == nil {
		chunk = make([]byte, 8)
	}
	readErr := b.ReadErr
	if readErr == nil {
		readErr = errRead
	}
	s := &Stream{
		Device:       device,
		Format:       format,
		chunk:        chunk,
		startErr:     b.StartErr,
		readErrAfter: b.ReadErrAfter,
		readErr:      readErr,
	}
	b.streams = append(b.streams, s)
	return s, nil
}

func (b *Backend) Type() audio.BackendType { return audio.BackendTypeMiniaudio }

// Opens is the number of Open calls so far.
func (b *Backend) Opens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens
}

// Streams returns every stream opened so far.
func (b *Backend) Streams() []*Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Stream, len(b.streams))
	copy(out, b.streams)
	return out
}

// Stream is the fake audio.Stream. Wait signals readiness after a short
// sleep so drain loops make progress on the real clock.
type Stream struct {
	Device audio.AudioDevice
	Format audio.AudioFormat

	chunk        []byte
	startErr     error
	readErrAfter int
	readErr      error

	mu      sync.Mutex
	started bool
	stopped bool
	closed  bool
	reads   int
}

func (s *Stream) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *Stream) Wait(timeout time.Duration) bool {
	d := time.Millisecond
	if timeout < d {
		time.Sleep(timeout)
		return false
	}
	time.Sleep(d)
	return true
}

func (s *Stream) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readErrAfter > 0 && s.reads >= s.readErrAfter {
		return nil, s.readErr
	}
	s.reads++
	out := make([]byte, len(s.chunk))
	copy(out, s.chunk)
	return out, nil
}

func (s *Stream) Stop() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	return nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Stopped reports whether Stop was called.
func (s *Stream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Started reports whether Start succeeded.
func (s *Stream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
