package audio

import (
	"fmt"
	"strings"
	"time"
)

// BackendType represents the type of audio backend
type BackendType string

const (
	BackendTypeMiniaudio BackendType = "miniaudio"
	BackendTypeAuto      BackendType = "auto"
)

// ParseBackendType resolves a configured backend name. Only miniaudio is
// available, so "auto" and the empty string select it.
func ParseBackendType(name string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(BackendTypeAuto), string(BackendTypeMiniaudio):
		return BackendTypeMiniaudio, nil
	}
	return "", fmt.Errorf("unsupported audio backend: %s", name)
}

// Backend defines the platform audio API used for loopback capture
type Backend interface {
	// Devices enumerates the render endpoints that can be captured in loopback.
	Devices() ([]AudioDevice, error)

	// Open negotiates format against the device in shared mode and returns an
	// event-driven stream that has not been started yet.
	Open(device AudioDevice, format AudioFormat) (Stream, error)

	// Type reports which implementation this is.
	Type() BackendType
}

// Stream is one open capture stream. It is driven by a single goroutine.
type Stream interface {
	Start() error

	// Wait blocks until the device signals that new frames are buffered or
	// timeout elapses. It reports whether the signal fired.
	Wait(timeout time.Duration) bool

	// Read returns the bytes captured since the previous Read.
	Read() ([]byte, error)

	Stop() error
	Close() error
}
