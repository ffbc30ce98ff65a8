package shutdown

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/multierr"
)

// linux truncates /proc/<pid>/comm to 15 bytes
const commLen = 15

// PsKiller implements ProcessKiller with a gopsutil process snapshot.
type PsKiller struct {
	// self is never killed
	self int32
}

// NewPsKiller creates a killer that spares the current process
func NewPsKiller() *PsKiller {
	return &PsKiller{self: int32(os.Getpid())}
}

// KillByName kills every process whose executable name matches name,
// case-insensitively and ignoring a ".exe" suffix.
func (k *PsKiller) KillByName(ctx context.Context, name string) (int, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list processes: %w", err)
	}

	target := normalizeName(name)
	killed := 0
	var errs error
	for _, p := range procs {
		if p.Pid == k.self {
			continue
		}
		pname, err := p.NameWithContext(ctx)
		if err != nil || pname == "" {
			continue
		}
		if !matchName(normalizeName(pname), target) {
			continue
		}

		slog.Debug("Killing process by name", "name", pname, "pid", p.Pid)
		if err := p.KillWithContext(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("pid %d: %w", p.Pid, err))
			continue
		}
		killed++
	}
	return killed, errs
}

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ".exe")
}

func matchName(candidate, target string) bool {
	if candidate == target {
		return true
	}
	return len(target) > commLen && len(candidate) == commLen && strings.HasPrefix(target, candidate)
}
