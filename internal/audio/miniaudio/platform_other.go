//go:build !windows

package miniaudio

import (
	"strings"

	"github.com/gen2brain/malgo"
)

// PulseAudio and PipeWire publish "Monitor of <sink>" capture sources for
// every output; those are the loopback endpoints here.
var contextBackends = []malgo.Backend{malgo.BackendPulseaudio, malgo.BackendAlsa, malgo.BackendCoreaudio}

const (
	enumerateType = malgo.Capture
	captureType   = malgo.Capture
)

func isLoopbackCandidate(info *malgo.DeviceInfo) bool {
	return strings.Contains(strings.ToLower(info.Name()), "monitor")
}
