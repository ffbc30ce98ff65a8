package miniaudio

import "github.com/gen2brain/malgo"

// WASAPI exposes loopback capture of render endpoints directly.
var contextBackends = []malgo.Backend{malgo.BackendWasapi}

const (
	enumerateType = malgo.Playback
	captureType   = malgo.Loopback
)

func isLoopbackCandidate(*malgo.DeviceInfo) bool { return true }
