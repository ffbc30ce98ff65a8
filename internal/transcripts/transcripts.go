// Package transcripts reads the text files the transcription helper writes
// into the session output directory.
package transcripts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const extension = ".txt"

// ErrOutsideDir is returned by ReadIn for paths outside the transcript directory.
var ErrOutsideDir = errors.New("transcript path outside output directory")

// File is one transcript on disk
type File struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// List returns the *.txt files directly in dir, most recently modified first.
func List(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript directory: %w", err)
	}

	var files []File
	for _, entry := range entries {
		if entry.IsDir() || !isTranscript(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, File{
			Path:     filepath.Join(dir, entry.Name()),
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Modified.After(files[j].Modified)
	})
	return files, nil
}

// Read returns the content of one transcript.
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read transcript: %w", err)
	}
	return string(data), nil
}

// ReadIn reads name, which must resolve to a transcript inside dir.
func ReadIn(dir, name string) (string, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, name)
	}
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || !isTranscript(path) {
		return "", fmt.Errorf("%w: %s", ErrOutsideDir, name)
	}
	return Read(path)
}

func isTranscript(name string) bool {
	return strings.EqualFold(filepath.Ext(name), extension)
}

// debounce coalesces the bursts of events a single helper write produces.
const debounce = 250 * time.Millisecond

// Watch calls fn with the path of each transcript created or modified in
// dir until ctx is done. Events for the same file within a short window are
// coalesced.
func Watch(ctx context.Context, dir string, fn func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()

		d := newDebouncer()
		defer d.stop()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 || !isTranscript(event.Name) {
					continue
				}
				d.touch(ctx, filepath.Clean(event.Name))

			case f := <-d.fired:
				if !d.settle(f) {
					continue
				}
				if _, err := os.Stat(f.path); err != nil {
					continue
				}
				slog.Debug("Transcript updated", "path", f.path)
				fn(f.path)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Transcript watcher error", "dir", dir, "error", err)
			}
		}
	}()

	slog.Debug("Watching transcript directory", "dir", dir)
	return nil
}

type firing struct {
	path string
	gen  uint64
}

// debouncer tracks one timer per path. Every touch replaces the timer with a
// new generation, so a timer that already fired and is waiting to hand over
// its path is recognised as stale and dropped.
type debouncer struct {
	delay   time.Duration
	gen     uint64
	pending map[string]firing
	timers  map[string]*time.Timer
	fired   chan firing
}

func newDebouncer() *debouncer {
	return &debouncer{
		delay:   debounce,
		pending: map[string]firing{},
		timers:  map[string]*time.Timer{},
		fired:   make(chan firing),
	}
}

func (d *debouncer) touch(ctx context.Context, path string) {
	if t, ok := d.timers[path]; ok {
		t.Stop()
	}
	d.gen++
	f := firing{path: path, gen: d.gen}
	d.pending[path] = f
	d.timers[path] = time.AfterFunc(d.delay, func() {
		select {
		case d.fired <- f:
		case <-ctx.Done():
		}
	})
}

// settle reports whether f is the latest firing for its path and forgets it.
func (d *debouncer) settle(f firing) bool {
	if d.pending[f.path] != f {
		return false
	}
	delete(d.pending, f.path)
	delete(d.timers, f.path)
	return true
}

func (d *debouncer) stop() {
	for _, t := range d.timers {
		t.Stop()
	}
}
