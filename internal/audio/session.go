package audio

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// SessionState is the lifecycle position of a capture session
type SessionState int

const (
	StateIdle SessionState = iota
	StateInitializing
	StateStreaming
	StateDraining
	StateStopped
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateInitializing:
		return "INITIALIZING"
	case StateStreaming:
		return "STREAMING"
	case StateDraining:
		return "DRAINING"
	case StateStopped:
		return "STOPPED"
	case StateFailed:
		return "FAILED"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s SessionState) Terminal() bool {
	return s == StateStopped || s == StateFailed
}

// DefaultPollInterval bounds how long the drain loop waits for a buffer-ready
// signal before re-checking the session clock.
const DefaultPollInterval = 100 * time.Millisecond

// SessionOption customizes a Session at open time
type SessionOption func(*Session)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Session drives exactly one capture lifecycle:
// Idle -> Initializing -> Streaming -> Draining -> Stopped, or Failed.
// It is owned by the goroutine driving it and must not be shared.
type Session struct {
	ID string

	device       AudioDevice
	format       AudioFormat
	state        SessionState
	err          error
	startedAt    time.Time
	buf          []byte
	stream       Stream
	pollInterval time.Duration
	now          func() time.Time
}

// OpenSession negotiates format against device and prepares an event-driven
// stream. The returned session is Initializing.
func OpenSession(backend Backend, device AudioDevice, format AudioFormat, opts ...SessionOption) (*Session, error) {
	s := &Session{
		ID:           uuid.NewString(),
		device:       device,
		format:       format,
		state:        StateIdle,
		buf:          []byte{},
		pollInterval: DefaultPollInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.state = StateInitializing
	if err := format.Validate(); err != nil {
		return nil, s.fail(err)
	}

	stream, err := backend.Open(device, format)
	if err != nil {
		return nil, s.fail(classify(err, ErrDeviceInit))
	}
	s.stream = stream

	slog.Debug("Capture session opened", "session", s.ID, "device", device.Name, "format", format.String())
	return s, nil
}

// Start begins the hardware stream (Initializing -> Streaming).
func (s *Session) Start() error {
	if s.state != StateInitializing {
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidState, s.state)
	}

	if err := s.stream.Start(); err != nil {
		s.closeStream()
		return s.fail(classify(err, ErrStreamStart))
	}

	s.state = StateStreaming
	s.startedAt = s.now()
	slog.Debug("Capture session streaming", "session", s.ID)
	return nil
}

// DrainUntil blocks until d has elapsed since Start, appending newly
// captured bytes on every buffer-ready wake. onProgress, if set, receives the
// elapsed time after each wake. A read failure fails the session after a
// best-effort stream stop. Cancelling ctx ends the drain early and returns
// ctx.Err() with the session still streaming.
func (s *Session) DrainUntil(ctx context.Context, d time.Duration, onProgress func(elapsed time.Duration)) error {
	if s.state != StateStreaming {
		return fmt.Errorf("%w: cannot drain from %s", ErrInvalidState, s.state)
	}

	for {
		elapsed := s.now().Sub(s.startedAt)
		if elapsed >= d {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		wait := s.pollInterval
		if remaining := d - elapsed; remaining < wait {
			wait = remaining
		}
		if !s.stream.Wait(wait) {
			continue
		}

		data, err := s.stream.Read()
		if err != nil {
			if stopErr := s.stream.Stop(); stopErr != nil {
				slog.Debug("Best-effort stream stop failed", "session", s.ID, "error", stopErr)
			}
			s.closeStream()
			return s.fail(classify(err, ErrStreamRead))
		}
		s.buf = append(s.buf, data...)

		if onProgress != nil {
			onProgress(s.now().Sub(s.startedAt))
		}
	}
}

// Stop halts the stream and returns everything captured. It may be called
// once; later calls, and calls on a failed session, return ErrInvalidState.
func (s *Session) Stop() ([]byte, error) {
	if s.state != StateStreaming && s.state != StateInitializing {
		return nil, fmt.Errorf("%w: cannot stop from %s", ErrInvalidState, s.state)
	}

	wasStreaming := s.state == StateStreaming
	s.state = StateDraining

	if wasStreaming {
		if err := s.stream.Stop(); err != nil {
			slog.Warn("Failed to stop audio stream cleanly", "session", s.ID, "error", err)
		}
		// frames delivered between the last wake and the stop
		if tail, err := s.stream.Read(); err == nil {
			s.buf = append(s.buf, tail...)
		}
	}
	s.closeStream()

	s.state = StateStopped
	slog.Debug("Capture session stopped", "session", s.ID, "bytes", len(s.buf))
	return s.buf, nil
}

// Abort releases the stream of a session that will not be stopped normally.
// It is a no-op on terminal sessions.
func (s *Session) Abort(reason error) {
	if s.state.Terminal() || s.state == StateIdle {
		return
	}
	if s.state == StateStreaming {
		if err := s.stream.Stop(); err != nil {
			slog.Debug("Best-effort stream stop failed", "session", s.ID, "error", err)
		}
	}
	s.closeStream()
	s.fail(reason)
}

func (s *Session) State() SessionState { return s.state }

// Err is the failure reason of a Failed session.
func (s *Session) Err() error { return s.err }

func (s *Session) Device() AudioDevice { return s.device }

func (s *Session) Format() AudioFormat { return s.format }

func (s *Session) StartedAt() time.Time { return s.startedAt }

// Buffered is the number of bytes captured so far.
func (s *Session) Buffered() int { return len(s.buf) }

func (s *Session) fail(err error) error {
	s.state = StateFailed
	s.err = err
	slog.Debug("Capture session failed", "session", s.ID, "error", err)
	return err
}

func (s *Session) closeStream() {
	if s.stream == nil {
		return
	}
	if err := s.stream.Close(); err != nil {
		slog.Debug("Failed to release audio stream", "session", s.ID, "error", err)
	}
	s.stream = nil
}
