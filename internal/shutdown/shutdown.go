// Package shutdown runs the graceful-close cleanup: remove the session flag
// and make sure no helper process outlives the application.
package shutdown

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/multierr"
)

// FlagClearer removes the session flag
type FlagClearer interface {
	Clear() error
}

// HandleCloser terminates the helpers spawned by this run through their
// retained handles.
type HandleCloser interface {
	Close() error
}

// ProcessKiller forcefully terminates every process with a given executable
// name. It returns how many processes it killed.
type ProcessKiller interface {
	KillByName(ctx context.Context, name string) (int, error)
}

// Coordinator performs cleanup at most once. Helpers are first terminated
// by handle. Killing by name afterwards only catches helpers left behind by
// an earlier run, and may hit unrelated processes with the same name.
type Coordinator struct {
	flag       FlagClearer
	supervisor HandleCloser
	killer     ProcessKiller
	names      []string

	once sync.Once
	err  error
}

// New creates a coordinator. Any collaborator may be nil to skip its step.
// names are the helper executable names to kill by name.
func New(flag FlagClearer, supervisor HandleCloser, killer ProcessKiller, names ...string) *Coordinator {
	return &Coordinator{
		flag:       flag,
		supervisor: supervisor,
		killer:     killer,
		names:      names,
	}
}

// Run executes the cleanup on the first call and returns the aggregated
// error of every step. Later calls return the same result. A failing step
// never prevents the following ones.
func (c *Coordinator) Run(ctx context.Context) error {
	c.once.Do(func() {
		c.err = c.run(ctx)
	})
	return c.err
}

func (c *Coordinator) run(ctx context.Context) error {
	slog.Info("Running shutdown cleanup")
	var errs error

	if c.flag != nil {
		if err := c.flag.Clear(); err != nil {
			slog.Warn("Failed to clear session flag", "error", err)
			errs = multierr.Append(errs, err)
		}
	}

	if c.supervisor != nil {
		if err := c.supervisor.Close(); err != nil {
			slog.Warn("Failed to terminate helper processes", "error", err)
			errs = multierr.Append(errs, err)
		}
	}

	if c.killer != nil {
		for _, name := range c.names {
			if name == "" {
				continue
			}
			n, err := c.killer.KillByName(ctx, name)
			if err != nil {
				slog.Warn("Failed to kill helper by name", "name", name, "error", err)
				errs = multierr.Append(errs, fmt.Errorf("kill %s: %w", name, err))
				continue
			}
			if n > 0 {
				slog.Info("Killed leftover helper processes", "name", name, "count", n)
			}
		}
	}

	return errs
}
