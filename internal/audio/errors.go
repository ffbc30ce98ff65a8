package audio

import (
	"errors"
	"fmt"
)

// Capture domain errors. Every error returned by this package wraps one of
// these so callers can branch with errors.Is.
var (
	ErrEnumeration       = errors.New("audio device enumeration failed")
	ErrDeviceNotFound    = errors.New("audio device not found")
	ErrDeviceInit        = errors.New("audio device initialization failed")
	ErrFormatNegotiation = errors.New("capture format rejected by device")
	ErrStreamStart       = errors.New("failed to start audio stream")
	ErrStreamRead        = errors.New("failed to read audio stream")
	ErrInvalidState      = errors.New("invalid capture session state")
	ErrAlreadyRunning    = errors.New("continuous recording already running")
	ErrNotRunning        = errors.New("no continuous recording in progress")
)

var captureErrors = []error{
	ErrEnumeration,
	ErrDeviceNotFound,
	ErrDeviceInit,
	ErrFormatNegotiation,
	ErrStreamStart,
	ErrStreamRead,
	ErrInvalidState,
}

// classify wraps err with kind unless it already carries a capture domain error.
func classify(err error, kind error) error {
	if err == nil {
		return nil
	}
	for _, known := range captureErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", kind, err)
}
