// Package process launches helper executables and guarantees they are
// terminated when their Supervisor is closed.
package process

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// ErrSpawn is returned when a helper executable is missing or fails to start.
var ErrSpawn = errors.New("failed to spawn helper process")

// DefaultGracePeriod is how long Terminate waits after the interrupt before
// killing the process group.
const DefaultGracePeriod = 3 * time.Second

// Kind identifies which helper a process is
type Kind int

const (
	KindBackend Kind = iota
	KindFileMonitor
	KindMonitorGUI
	KindPlayer
)

func (k Kind) String() string {
	switch k {
	case KindBackend:
		return "backend"
	case KindFileMonitor:
		return "file_monitor"
	case KindMonitorGUI:
		return "monitor_gui"
	case KindPlayer:
		return "player"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Spec describes one helper launch
type Spec struct {
	Kind    Kind
	Command string
	Args    []string
	Dir     string

	// Visible asks for a console window on Windows. On unix a visible helper
	// shares our terminal, a hidden one has its output logged.
	Visible bool
}

// Handle is a spawned helper. It is owned by the Supervisor that created it.
type Handle struct {
	Kind Kind

	cmd  *exec.Cmd
	done chan struct{}

	once sync.Once
}

// PID of the helper process
func (h *Handle) PID() int { return h.cmd.Process.Pid }

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Exited reports whether the process has exited.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// processGroup ties spawned processes to our lifetime beyond what Terminate
// can guarantee. On Windows this is a kill-on-close job object.
type processGroup interface {
	Add(p *os.Process) error
	Close() error
}

// Option customizes a Supervisor
type Option func(*Supervisor)

// WithGracePeriod overrides DefaultGracePeriod.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.grace = d
		}
	}
}

// Supervisor spawns helpers and terminates every one of them on Close.
// Callers defer Close on every exit path.
type Supervisor struct {
	grace time.Duration
	group processGroup

	mu      sync.Mutex
	handles map[*Handle]struct{}
	closed  bool
}

// NewSupervisor creates a supervisor and its OS process group.
func NewSupervisor(opts ...Option) (*Supervisor, error) {
	group, err := newProcessGroup()
	if err != nil {
		return nil, fmt.Errorf("failed to create process group: %w", err)
	}

	s := &Supervisor{
		grace:   DefaultGracePeriod,
		group:   group,
		handles: map[*Handle]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Spawn starts the helper described by spec. On failure nothing is
// registered and the error wraps ErrSpawn.
func (s *Supervisor) Spawn(spec Spec) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: supervisor is closed", ErrSpawn)
	}

	path, err := exec.LookPath(spec.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSpawn, spec.Kind, err)
	}

	cmd := newCommand(path, spec)
	cmd.Dir = spec.Dir
	cmd.WaitDelay = time.Second
	configureCommand(cmd, spec.Visible)
	attachOutput(cmd, spec)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSpawn, spec.Kind, err)
	}

	h := &Handle{Kind: spec.Kind, cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		slog.Debug("Helper process exited", "helper", spec.Kind, "pid", cmd.Process.Pid, "result", err)
		close(h.done)
	}()

	if err := s.group.Add(cmd.Process); err != nil {
		slog.Warn("Failed to attach helper to process group", "helper", spec.Kind, "pid", cmd.Process.Pid, "error", err)
	}

	s.handles[h] = struct{}{}
	slog.Info("Helper process started", "helper", spec.Kind, "path", path, "pid", cmd.Process.Pid, "visible", spec.Visible)
	return h, nil
}

// Terminate interrupts the helper, waits up to the grace period, then kills
// its process group and waits for it to be reaped. Only the first call does
// anything; later calls return nil.
func (s *Supervisor) Terminate(h *Handle) error {
	if h == nil {
		return nil
	}

	var err error
	h.once.Do(func() {
		err = s.terminate(h)

		s.mu.Lock()
		delete(s.handles, h)
		s.mu.Unlock()
	})
	return err
}

func (s *Supervisor) terminate(h *Handle) error {
	if h.Exited() {
		return nil
	}

	pid := h.cmd.Process.Pid
	if err := interrupt(h.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		slog.Debug("Interrupt failed, killing helper", "helper", h.Kind, "pid", pid, "error", err)
	} else {
		timer := time.NewTimer(s.grace)
		defer timer.Stop()
		select {
		case <-h.done:
			slog.Info("Helper process stopped", "helper", h.Kind, "pid", pid)
			return nil
		case <-timer.C:
			slog.Warn("Helper did not exit in time, killing", "helper", h.Kind, "pid", pid, "grace", s.grace)
		}
	}

	var err error
	if kerr := kill(h.cmd); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
		err = fmt.Errorf("failed to kill %s (pid %d): %w", h.Kind, pid, kerr)
	}
	<-h.done
	slog.Info("Helper process killed", "helper", h.Kind, "pid", pid)
	return err
}

// Live returns the handles that have not been terminated yet.
func (s *Supervisor) Live() []*Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Handle, 0, len(s.handles))
	for h := range s.handles {
		out = append(out, h)
	}
	return out
}

// Close terminates every live helper and releases the process group. It is
// safe to call more than once.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, h := range s.Live() {
		wg.Add(1)
		go func(h *Handle) {
			defer wg.Done()
			if err := s.Terminate(h); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}(h)
	}
	wg.Wait()

	return multierr.Append(errs, s.group.Close())
}
