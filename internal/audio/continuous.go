package audio

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ControllerState is the state of a ContinuousController
type ControllerState string

const (
	ControllerIdle     ControllerState = "IDLE"
	ControllerRunning  ControllerState = "RUNNING"
	ControllerStopping ControllerState = "STOPPING"
)

// SessionRunner runs one complete capture session. *Recorder implements it.
type SessionRunner interface {
	Record(ctx context.Context, deviceID string) (string, error)
}

// ContinuousHandle identifies one continuous recording. It is returned by
// Start and passed back to Stop. The cancel flag and iteration count are the
// only state shared with the worker goroutine.
type ContinuousHandle struct {
	ID       string
	DeviceID string

	mu         sync.Mutex
	cancelled  bool
	iterations int
	done       chan struct{}
}

// Iterations is the number of sessions completed so far
func (h *ContinuousHandle) Iterations() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.iterations
}

// Cancelled reports whether Stop has been requested
func (h *ContinuousHandle) Cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// Done is closed once the worker loop has exited.
func (h *ContinuousHandle) Done() <-chan struct{} { return h.done }

func (h *ContinuousHandle) cancel() {
	h.mu.Lock()
	h.cancelled = true
	h.mu.Unlock()
}

func (h *ContinuousHandle) completeIteration() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.iterations++
	return h.iterations
}

// ContinuousOption customizes a ContinuousController
type ContinuousOption func(*ContinuousController)

// WithMaxConsecutiveFailures lets a failed session be retried up to n times
// in a row before the loop gives up. The default of 0 ends the loop on the
// first failure.
func WithMaxConsecutiveFailures(n int) ContinuousOption {
	return func(c *ContinuousController) {
		if n > 0 {
			c.maxConsecutiveFailures = n
		}
	}
}

// ContinuousController records back-to-back sessions on a background
// goroutine until asked to stop. At most one continuous recording runs at a
// time. Stop requests take effect at the next session boundary.
type ContinuousController struct {
	runner                 SessionRunner
	notifier               Notifier
	maxConsecutiveFailures int

	mu     sync.Mutex
	active *ContinuousHandle

	// ctx is cancelled only by Close, on application teardown.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewContinuousController creates an idle controller
func NewContinuousController(runner SessionRunner, notifier Notifier, opts ...ContinuousOption) *ContinuousController {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &ContinuousController{
		runner:   runner,
		notifier: notifier,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the recording loop for deviceID.
func (c *ContinuousController) Start(deviceID string) (*ContinuousHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, ErrAlreadyRunning
	}
	if err := c.ctx.Err(); err != nil {
		return nil, err
	}

	h := &ContinuousHandle{
		ID:       uuid.NewString(),
		DeviceID: deviceID,
		done:     make(chan struct{}),
	}
	c.active = h

	slog.Info("Continuous recording starting", "handle", h.ID, "device_id", deviceID)
	go c.run(h)
	return h, nil
}

// Stop sets the cancel flag of h. It does not wait: the current session
// finishes and the loop exits at the following boundary.
func (c *ContinuousController) Stop(h *ContinuousHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h == nil || c.active == nil || c.active != h {
		return ErrNotRunning
	}
	h.cancel()
	slog.Info("Continuous recording stop requested", "handle", h.ID, "iterations", h.Iterations())
	return nil
}

// State reports Idle, Running or Stopping
func (c *ContinuousController) State() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.active == nil:
		return ControllerIdle
	case c.active.Cancelled():
		return ControllerStopping
	default:
		return ControllerRunning
	}
}

// Active returns the running handle, or nil.
func (c *ContinuousController) Active() *ContinuousHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Close aborts any in-flight session and waits for the loop to exit. The
// controller cannot be restarted afterwards.
func (c *ContinuousController) Close() {
	c.cancel()
	if h := c.Active(); h != nil {
		<-h.done
	}
}

func (c *ContinuousController) run(h *ContinuousHandle) {
	defer close(h.done)

	c.notifier.Notify(EventContinuousStarted, nil)

	failures := 0
	for {
		slog.Debug("Continuous recording iteration", "handle", h.ID, "iteration", h.Iterations()+1)

		_, err := c.runner.Record(c.ctx, h.DeviceID)
		if err != nil {
			// Stop never interrupts an iteration, so only teardown explains an error.
			if c.ctx.Err() != nil {
				c.finish(h, EventContinuousStopped, h.Iterations())
				return
			}
			if failures < c.maxConsecutiveFailures {
				failures++
				slog.Warn("Continuous recording iteration failed, retrying",
					"handle", h.ID, "attempt", failures, "max", c.maxConsecutiveFailures, "error", err)
				continue
			}
			slog.Error("Continuous recording aborted", "handle", h.ID, "iterations", h.Iterations(), "error", err)
			c.finish(h, EventContinuousError, err.Error())
			return
		}
		failures = 0

		count := h.completeIteration()
		c.notifier.Notify(EventContinuousProgress, count)

		if h.Cancelled() || c.ctx.Err() != nil {
			c.finish(h, EventContinuousStopped, count)
			return
		}
	}
}

// finish releases the controller before the terminal notification so that
// observers of the event see an idle controller.
func (c *ContinuousController) finish(h *ContinuousHandle, event string, payload any) {
	c.mu.Lock()
	if c.active == h {
		c.active = nil
	}
	c.mu.Unlock()

	slog.Info("Continuous recording finished", "handle", h.ID, "event", event, "iterations", h.Iterations())
	c.notifier.Notify(event, payload)
}
