package audio

import (
	"fmt"
	"strings"
)

// SampleKind is the numeric encoding of a single sample.
type SampleKind string

const (
	SampleFloat SampleKind = "float"
	SampleInt   SampleKind = "int"
)

// ParseSampleKind accepts "float" or "int" in any case.
func ParseSampleKind(s string) (SampleKind, error) {
	switch SampleKind(strings.ToLower(strings.TrimSpace(s))) {
	case SampleFloat:
		return SampleFloat, nil
	case SampleInt:
		return SampleInt, nil
	}
	return "", fmt.Errorf("unknown sample kind %q (expected float or int)", s)
}

// AudioFormat is fixed for the lifetime of a capture session.
type AudioFormat struct {
	SampleRate    uint32     `json:"sample_rate"`
	Channels      uint16     `json:"channels"`
	BitsPerSample uint16     `json:"bits_per_sample"`
	SampleKind    SampleKind `json:"sample_kind"`
}

// DefaultFormat is 44.1 kHz stereo 32-bit float, the shared-mode mix format
// most render endpoints expose.
func DefaultFormat() AudioFormat {
	return AudioFormat{
		SampleRate:    44100,
		Channels:      2,
		BitsPerSample: 32,
		SampleKind:    SampleFloat,
	}
}

// BlockAlign is the size in bytes of one frame.
func (f AudioFormat) BlockAlign() int {
	return int(f.Channels) * int(f.BitsPerSample) / 8
}

// ByteRate is the number of bytes captured per second.
func (f AudioFormat) ByteRate() int {
	return int(f.SampleRate) * f.BlockAlign()
}

// Validate rejects formats no backend can negotiate.
func (f AudioFormat) Validate() error {
	if f.SampleRate == 0 {
		return fmt.Errorf("%w: sample rate must be positive", ErrFormatNegotiation)
	}
	if f.Channels == 0 {
		return fmt.Errorf("%w: channel count must be positive", ErrFormatNegotiation)
	}
	switch f.SampleKind {
	case SampleFloat:
		if f.BitsPerSample != 32 {
			return fmt.Errorf("%w: float samples must be 32 bits, got %d", ErrFormatNegotiation, f.BitsPerSample)
		}
	case SampleInt:
		if f.BitsPerSample != 16 && f.BitsPerSample != 24 && f.BitsPerSample != 32 {
			return fmt.Errorf("%w: integer samples must be 16, 24 or 32 bits, got %d", ErrFormatNegotiation, f.BitsPerSample)
		}
	default:
		return fmt.Errorf("%w: unknown sample kind %q", ErrFormatNegotiation, f.SampleKind)
	}
	return nil
}

func (f AudioFormat) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit-%s", f.SampleRate, f.Channels, f.BitsPerSample, f.SampleKind)
}
