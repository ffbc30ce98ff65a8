package cmd

import (
	"fmt"
	"log/slog"

	"github.com/audiolibrelab/loopcap/internal/audio"
	"github.com/audiolibrelab/loopcap/internal/audio/miniaudio"
	"github.com/audiolibrelab/loopcap/internal/flagstore"
	"github.com/audiolibrelab/loopcap/internal/play"
	"github.com/audiolibrelab/loopcap/internal/service"
)

// newBackend opens the configured capture backend. The returned func
// releases it.
func newBackend() (audio.Backend, func(), error) {
	kind, err := audio.ParseBackendType(cfg.Audio.Backend)
	if err != nil {
		return nil, nil, err
	}

	switch kind {
	case audio.BackendTypeMiniaudio:
		b, err := miniaudio.New()
		if err != nil {
			return nil, nil, err
		}
		slog.Debug("Audio backend ready", "backend", kind)
		return b, func() {
			if err := b.Close(); err != nil {
				slog.Warn("Failed to close audio backend", "error", err)
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unsupported audio backend: %s", kind)
}

// newService builds the service with its own backend. Close the service
// before calling the returned release func.
func newService(spawner play.Spawner, notifier audio.Notifier) (*service.LoopcapService, func(), error) {
	backend, release, err := newBackend()
	if err != nil {
		return nil, nil, err
	}

	svc, err := service.New(cfg, backend, flagstore.New(cfg.FlagPath()), spawner, notifier)
	if err != nil {
		release()
		return nil, nil, err
	}
	return svc, release, nil
}
