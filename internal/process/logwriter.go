package process

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
)

const maxPendingLine = 64 * 1024

// logWriter turns a helper's output stream into one log record per line.
type logWriter struct {
	kind Kind

	mu      sync.Mutex
	pending []byte
}

func newLogWriter(kind Kind) *logWriter {
	return &logWriter{kind: kind}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.emit(w.pending[:i])
		w.pending = w.pending[i+1:]
	}

	// a helper that never prints a newline must not grow the buffer forever
	if len(w.pending) > maxPendingLine {
		w.emit(w.pending)
		w.pending = nil
	}
	return len(p), nil
}

func (w *logWriter) emit(line []byte) {
	text := strings.TrimRight(string(line), "\r")
	if text == "" {
		return
	}
	slog.Info("Helper output", "helper", w.kind, "line", text)
}
