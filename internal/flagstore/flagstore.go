// Package flagstore hands the session's output directory to helper processes
// launched independently of us, through a small file at a well-known path.
package flagstore

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/natefinch/atomic"
)

const flagFileName = "running_flag.tmp"

var (
	// ErrFlagNotFound means no session is active.
	ErrFlagNotFound = errors.New("session flag not found")

	// ErrFlagUnreadable means the flag exists but cannot be used.
	ErrFlagUnreadable = errors.New("session flag unreadable")
)

// DefaultPath returns <user cache dir>/<appName>/running_flag.tmp, which is
// %LOCALAPPDATA%\<appName>\running_flag.tmp on Windows.
//
// If the cache directory cannot be determined it falls back to the system
// temporary directory.
func DefaultPath(appName string) string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, appName, flagFileName)
}

// Store reads and writes one flag file
type Store struct {
	path string
}

// New creates a store for the flag at path
func New(path string) *Store {
	return &Store{path: path}
}

// Path of the flag file
func (s *Store) Path() string { return s.path }

// Write records dir as the active output directory. The file is replaced
// atomically so readers never observe a partial path.
func (s *Store) Write(dir string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create flag directory: %w", err)
	}
	if err := atomic.WriteFile(s.path, strings.NewReader(dir)); err != nil {
		return fmt.Errorf("failed to write session flag %s: %w", s.path, err)
	}
	slog.Debug("Session flag written", "path", s.path, "output_dir", dir)
	return nil
}

// Read returns the stored directory exactly as written.
func (s *Store) Read() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrFlagNotFound, s.path)
		}
		return "", fmt.Errorf("%w: %w", ErrFlagUnreadable, err)
	}

	switch {
	case len(data) == 0:
		return "", fmt.Errorf("%w: %s is empty", ErrFlagUnreadable, s.path)
	case !utf8.Valid(data):
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrFlagUnreadable, s.path)
	case bytes.IndexByte(data, 0) >= 0:
		return "", fmt.Errorf("%w: %s contains NUL bytes", ErrFlagUnreadable, s.path)
	}
	return string(data), nil
}

// Clear removes the flag. A missing flag is not an error.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session flag %s: %w", s.path, err)
	}
	slog.Debug("Session flag cleared", "path", s.path)
	return nil
}
