package audio

import "log/slog"

// Lifecycle notification names observed by the GUI boundary.
const (
	EventRecordingStarted  = "recording_started"
	EventRecordingProgress = "recording_progress"
	EventRecordingFinished = "recording_finished"
	EventRecordingError    = "recording_error"

	EventContinuousStarted  = "continuous_recording_started"
	EventContinuousProgress = "continuous_recording_progress"
	EventContinuousError    = "continuous_recording_error"
	EventContinuousStopped  = "continuous_recording_stopped"
)

// Notifier receives lifecycle notifications. Implementations must be safe
// for concurrent use and must not block for long; they are called from
// capture goroutines.
type Notifier interface {
	Notify(event string, payload any)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(event string, payload any)

func (f NotifierFunc) Notify(event string, payload any) { f(event, payload) }

// MultiNotifier fans a notification out to every non-nil notifier in order.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(event string, payload any) {
	for _, n := range m {
		if n != nil {
			n.Notify(event, payload)
		}
	}
}

// LogNotifier writes notifications to the default slog logger. Progress
// events go to debug level.
type LogNotifier struct{}

func (LogNotifier) Notify(event string, payload any) {
	switch event {
	case EventRecordingProgress, EventContinuousProgress:
		slog.Debug("Audio event", "event", event, "payload", payload)
	case EventRecordingError, EventContinuousError:
		slog.Error("Audio event", "event", event, "payload", payload)
	default:
		slog.Info("Audio event", "event", event, "payload", payload)
	}
}

type discardNotifier struct{}

func (discardNotifier) Notify(string, any) {}
