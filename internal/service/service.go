package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/audiolibrelab/loopcap/internal/audio"
	"github.com/audiolibrelab/loopcap/internal/config"
	"github.com/audiolibrelab/loopcap/internal/flagstore"
	"github.com/audiolibrelab/loopcap/internal/play"
	"github.com/audiolibrelab/loopcap/internal/transcripts"
)

// Service is what the CLI and the control API drive
type Service interface {
	// Device operations
	ListDevices() ([]audio.AudioDevice, error)

	// Recording operations
	Record(deviceID string)
	RecordSync(ctx context.Context, deviceID string) (string, error)
	StartContinuous(deviceID string) (*audio.ContinuousHandle, error)
	StopContinuous(handleID string) error
	GetContinuousStatus() ContinuousStatus
	ListRecordings() ([]RecordingInfo, error)

	// Session flag operations
	GetOutputDir() (string, error)
	SetOutputDir(dir string) error

	// Transcript operations
	ListTranscripts() ([]transcripts.File, error)
	ReadTranscript(name string) (string, error)

	// Playback operations
	Play(filename string) error

	GetConfig() *config.Config
	GetLastError() string

	// Close stops continuous recording, aborting an in-flight session.
	Close()
}

// ContinuousStatus describes the continuous recording controller
type ContinuousStatus struct {
	State      audio.ControllerState `json:"state"`
	HandleID   string                `json:"handle_id,omitempty"`
	DeviceID   string                `json:"device_id,omitempty"`
	Iterations int                   `json:"iterations"`
}

// RecordingInfo contains information about a recorded WAV file
type RecordingInfo struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	SizeHuman    string    `json:"size_human"`
	ModTime      time.Time `json:"mod_time"`
	ModTimeHuman string    `json:"mod_time_human"`
}

var _ Service = (*LoopcapService)(nil)

// LoopcapService is the main service implementation
type LoopcapService struct {
	cfg        *config.Config
	catalog    *audio.Catalog
	recorder   *audio.Recorder
	continuous *audio.ContinuousController
	flags      *flagstore.Store
	player     *play.Player

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a service. notifier receives every lifecycle notification
// after the service has recorded errors from it; it may be nil.
func New(cfg *config.Config, backend audio.Backend, flags *flagstore.Store, spawner play.Spawner, notifier audio.Notifier) (*LoopcapService, error) {
	recCfg, err := cfg.RecorderConfig()
	if err != nil {
		return nil, err
	}

	s := &LoopcapService{
		cfg:     cfg,
		catalog: audio.NewCatalog(backend),
		flags:   flags,
		player:  play.New(spawner),
	}

	notify := audio.MultiNotifier{audio.NotifierFunc(s.trackEvent), notifier}
	s.recorder = audio.NewRecorder(backend, recCfg, notify)
	s.continuous = audio.NewContinuousController(s.recorder, notify,
		audio.WithMaxConsecutiveFailures(cfg.Continuous.MaxConsecutiveFailures))
	return s, nil
}

// trackEvent keeps the last error reported by a recording so the status
// endpoint can show it.
func (s *LoopcapService) trackEvent(event string, payload any) {
	switch event {
	case audio.EventRecordingError, audio.EventContinuousError:
		s.setLastError(fmt.Sprintf("%s: %v", event, payload))
	case audio.EventRecordingStarted, audio.EventContinuousStarted:
		s.clearLastError()
	}
}

func (s *LoopcapService) ListDevices() ([]audio.AudioDevice, error) {
	devices, err := s.catalog.ListDevices()
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to list devices: %v", err))
	}
	return devices, err
}

// Record starts a one-shot recording in the background
func (s *LoopcapService) Record(deviceID string) {
	slog.Debug("Service.Record called", "device_id", deviceID)
	s.recorder.RecordAsync(deviceID)
}

// RecordSync runs a one-shot recording and waits for the file
func (s *LoopcapService) RecordSync(ctx context.Context, deviceID string) (string, error) {
	return s.recorder.Record(ctx, deviceID)
}

func (s *LoopcapService) StartContinuous(deviceID string) (*audio.ContinuousHandle, error) {
	slog.Debug("Service.StartContinuous called", "device_id", deviceID)
	h, err := s.continuous.Start(deviceID)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to start continuous recording: %v", err))
		return nil, err
	}
	return h, nil
}

// StopContinuous requests the active continuous recording to stop. An empty
// handleID stops whichever recording is active; otherwise the id must match.
func (s *LoopcapService) StopContinuous(handleID string) error {
	h := s.continuous.Active()
	if h != nil && handleID != "" && h.ID != handleID {
		return fmt.Errorf("%w: unknown handle %s", audio.ErrNotRunning, handleID)
	}
	return s.continuous.Stop(h)
}

func (s *LoopcapService) GetContinuousStatus() ContinuousStatus {
	status := ContinuousStatus{State: s.continuous.State()}
	if h := s.continuous.Active(); h != nil {
		status.HandleID = h.ID
		status.DeviceID = h.DeviceID
		status.Iterations = h.Iterations()
	}
	return status
}

// ListRecordings returns the WAV files in the output directory, newest first
func (s *LoopcapService) ListRecordings() ([]RecordingInfo, error) {
	dir := s.recordingDir()
	files, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read recordings directory: %w", err)
	}

	var recordings []RecordingInfo
	for _, file := range files {
		if file.IsDir() || !strings.EqualFold(filepath.Ext(file.Name()), ".wav") {
			continue
		}
		info, err := file.Info()
		if err != nil {
			slog.Warn("Failed to get file info", "file", file.Name(), "error", err)
			continue
		}
		recordings = append(recordings, RecordingInfo{
			Name:         file.Name(),
			Path:         filepath.Join(dir, file.Name()),
			Size:         info.Size(),
			SizeHuman:    formatBytes(info.Size()),
			ModTime:      info.ModTime(),
			ModTimeHuman: info.ModTime().Format("2006-01-02 15:04:05"),
		})
	}

	sort.Slice(recordings, func(i, j int) bool {
		return recordings[i].ModTime.After(recordings[j].ModTime)
	})
	return recordings, nil
}

func (s *LoopcapService) recordingDir() string {
	if s.cfg.Output.Directory != "" {
		return s.cfg.Output.Directory
	}
	return "."
}

// GetOutputDir returns the directory handed to helpers through the flag
func (s *LoopcapService) GetOutputDir() (string, error) {
	return s.flags.Read()
}

// SetOutputDir stores an absolute form of dir in the session flag
func (s *LoopcapService) SetOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid output directory %q: %w", dir, err)
	}
	if err := s.flags.Write(abs); err != nil {
		s.setLastError(fmt.Sprintf("Failed to write session flag: %v", err))
		return err
	}
	slog.Info("Output directory set", "dir", abs)
	return nil
}

// ListTranscripts lists the transcripts in the flagged output directory
func (s *LoopcapService) ListTranscripts() ([]transcripts.File, error) {
	dir, err := s.flags.Read()
	if err != nil {
		return nil, err
	}
	return transcripts.List(dir)
}

// ReadTranscript reads one transcript; it must live in the flagged directory
func (s *LoopcapService) ReadTranscript(name string) (string, error) {
	dir, err := s.flags.Read()
	if err != nil {
		return "", err
	}
	return transcripts.ReadIn(dir, name)
}

// Play plays a recording from the output directory
func (s *LoopcapService) Play(filename string) error {
	path := filename
	if !filepath.IsAbs(path) && filepath.Dir(path) == "." {
		path = filepath.Join(s.recordingDir(), filename)
	}
	_, err := s.player.Play(path)
	if err != nil {
		s.setLastError(fmt.Sprintf("Playback failed: %v", err))
	}
	return err
}

// GetConfig returns the current configuration
func (s *LoopcapService) GetConfig() *config.Config {
	return s.cfg
}

func (s *LoopcapService) Close() {
	s.continuous.Close()
}

// GetLastError returns the last error message (thread-safe)
func (s *LoopcapService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// setLastError sets the last error message (thread-safe)
func (s *LoopcapService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (s *LoopcapService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
