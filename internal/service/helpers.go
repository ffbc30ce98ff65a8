package service

import (
	"errors"
	"log/slog"

	"github.com/audiolibrelab/loopcap/internal/config"
	"github.com/audiolibrelab/loopcap/internal/flagstore"
	"github.com/audiolibrelab/loopcap/internal/process"
)

// HelperSpawner is the part of *process.Supervisor used to launch helpers
type HelperSpawner interface {
	Spawn(spec process.Spec) (*process.Handle, error)
}

// FlagReader is the part of *flagstore.Store the file monitor needs
type FlagReader interface {
	Read() (string, error)
}

// StartHelpers launches the enabled helpers and returns the ones that
// started. A helper that fails to start never aborts startup: the backend is
// logged as an error in release builds, everything else as a warning. The
// file monitor is only started when the session flag names a directory.
func StartHelpers(cfg config.HelpersConfig, spawner HelperSpawner, flags FlagReader) []*process.Handle {
	var started []*process.Handle

	launch := func(kind process.Kind, h config.HelperConfig, extraArgs ...string) {
		if !h.Enabled {
			slog.Debug("Helper disabled", "helper", kind)
			return
		}
		args := append(append([]string{}, h.Args...), extraArgs...)
		handle, err := spawner.Spawn(process.Spec{
			Kind:    kind,
			Command: h.Command,
			Args:    args,
			Visible: h.Visible,
		})
		if err != nil {
			if h.Required && cfg.Release {
				slog.Error("Required helper failed to start", "helper", kind, "command", h.Command, "error", err)
			} else {
				slog.Warn("Helper failed to start", "helper", kind, "command", h.Command, "error", err)
			}
			return
		}
		started = append(started, handle)
	}

	launch(process.KindBackend, cfg.Backend)

	if cfg.FileMonitor.Enabled {
		dir, err := flags.Read()
		switch {
		case errors.Is(err, flagstore.ErrFlagNotFound):
			slog.Warn("No session flag, file monitor not started", "error", err)
		case err != nil:
			slog.Error("Session flag unusable, file monitor not started", "error", err)
		default:
			launch(process.KindFileMonitor, cfg.FileMonitor, "--monitor-dir", dir)
		}
	}

	launch(process.KindMonitorGUI, cfg.MonitorGUI)
	return started
}
