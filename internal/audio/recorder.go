package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultSessionDuration is the length of one one-shot or continuous
	// iteration.
	DefaultSessionDuration = 10 * time.Second

	fileTimestampLayout = "20060102_150405"
)

// RecorderConfig holds the fixed per-session policy
type RecorderConfig struct {
	Format          AudioFormat
	SessionDuration time.Duration
	PollInterval    time.Duration

	// OutputDir receives the WAV files. Empty means the working directory.
	OutputDir string
}

// Recorder runs complete capture sessions against devices resolved by ID
// and writes each one to record_<YYYYMMDD_HHMMSS>.wav.
type Recorder struct {
	backend  Backend
	catalog  *Catalog
	cfg      RecorderConfig
	notifier Notifier
	now      func() time.Time
}

// NewRecorder creates a recorder. A nil notifier discards notifications.
func NewRecorder(backend Backend, cfg RecorderConfig, notifier Notifier) *Recorder {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	if cfg.SessionDuration <= 0 {
		cfg.SessionDuration = DefaultSessionDuration
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Format == (AudioFormat{}) {
		cfg.Format = DefaultFormat()
	}

	return &Recorder{
		backend:  backend,
		catalog:  NewCatalog(backend),
		cfg:      cfg,
		notifier: notifier,
		now:      time.Now,
	}
}

// Config returns the policy this recorder was built with
func (r *Recorder) Config() RecorderConfig { return r.cfg }

// RecordAsync runs Record on its own goroutine and returns immediately.
// Outcome is reported through notifications only.
func (r *Recorder) RecordAsync(deviceID string) {
	go func() {
		if _, err := r.Record(context.Background(), deviceID); err != nil {
			slog.Debug("Background recording failed", "device_id", deviceID, "error", err)
		}
	}()
}

// Record captures one session of the configured duration from the device
// and returns the written filename. It emits recording_started,
// recording_progress*, then recording_finished or recording_error.
func (r *Recorder) Record(ctx context.Context, deviceID string) (string, error) {
	slog.Info("Recording started", "device_id", deviceID, "duration", r.cfg.SessionDuration)

	device, err := r.catalog.Resolve(deviceID)
	if err != nil {
		return "", r.fail(fmt.Errorf("failed to resolve device: %w", err))
	}

	sess, err := OpenSession(r.backend, device, r.cfg.Format, WithPollInterval(r.cfg.PollInterval))
	if err != nil {
		return "", r.fail(fmt.Errorf("failed to open capture session: %w", err))
	}
	if err := sess.Start(); err != nil {
		return "", r.fail(fmt.Errorf("failed to start capture: %w", err))
	}

	r.notifier.Notify(EventRecordingStarted, nil)

	duration := r.cfg.SessionDuration
	err = sess.DrainUntil(ctx, duration, func(elapsed time.Duration) {
		progress := float64(elapsed) / float64(duration) * 100
		if progress > 100 {
			progress = 100
		}
		r.notifier.Notify(EventRecordingProgress, progress)
	})
	if err != nil {
		sess.Abort(err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", r.fail(fmt.Errorf("recording cancelled: %w", err))
		}
		return "", r.fail(fmt.Errorf("capture failed: %w", err))
	}

	data, err := sess.Stop()
	if err != nil {
		return "", r.fail(err)
	}

	filename, err := r.nextFilename()
	if err != nil {
		return "", r.fail(err)
	}
	if err := WriteWAVFile(filename, data, r.cfg.Format); err != nil {
		return "", r.fail(err)
	}

	slog.Info("Recording saved", "file", filename, "bytes", len(data), "session", sess.ID)
	r.notifier.Notify(EventRecordingFinished, filename)
	return filename, nil
}

func (r *Recorder) fail(err error) error {
	slog.Error("Recording failed", "error", err)
	r.notifier.Notify(EventRecordingError, err.Error())
	return err
}

// nextFilename builds record_<timestamp>.wav in the output directory. Two
// sessions finishing within the same second get a numeric suffix instead of
// overwriting each other.
func (r *Recorder) nextFilename() (string, error) {
	dir := r.cfg.OutputDir
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	base := "record_" + r.now().Format(fileTimestampLayout)
	name := filepath.Join(dir, base+".wav")
	for i := 1; fileExists(name); i++ {
		name = filepath.Join(dir, fmt.Sprintf("%s_%d.wav", base, i))
	}
	return name, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
