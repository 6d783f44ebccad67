// Package locking provides the PID lockfile guarding against overlapping
// synchronisation runs.
package locking

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another live run holds the lock.
var ErrLocked = fmt.Errorf("lockfile is held by another process")

// PIDLockfile is a filesystem-backed mutual-exclusion token. The flock(2)
// lock provides the actual exclusion; the pid and timestamp payload exists
// so operators (and staleness reporting) can see who held it. The kernel
// drops the flock when the holder dies, so a readable payload with a dead
// pid only ever means an unclean exit, never a live conflict.
type PIDLockfile struct {
	path string
	fl   *flock.Flock
}

// New creates a lockfile handle for path. Nothing is acquired yet.
func New(path string) *PIDLockfile {
	return &PIDLockfile{
		path: path,
		fl:   flock.New(path),
	}
}

// Acquire takes the lock without blocking. It returns an error wrapping
// ErrLocked when another process holds it.
func (l *PIDLockfile) Acquire() error {
	locked, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lockfile %s: %w", l.path, err)
	}
	if !locked {
		if pid, at, ok := l.readPayload(); ok {
			return fmt.Errorf("%w: pid %d since %s", ErrLocked, pid, at.Format(time.RFC3339))
		}
		return fmt.Errorf("%w: %s", ErrLocked, l.path)
	}

	// We hold the flock now. Any payload left behind is from an unclean
	// exit of a previous run.
	if pid, at, ok := l.readPayload(); ok {
		slog.Warn("Reclaiming stale lockfile",
			"path", l.path, "stale_pid", pid, "stale_since", at, "stale_pid_alive", pidAlive(pid))
	}

	payload := fmt.Sprintf("%d %d\n", os.Getpid(), time.Now().Unix())
	if err := os.WriteFile(l.path, []byte(payload), 0644); err != nil {
		_ = l.fl.Unlock()
		return fmt.Errorf("failed to write lockfile payload: %w", err)
	}
	return nil
}

// Release clears the payload and drops the lock. It must be called exactly
// once per acquired lock, on every exit path.
func (l *PIDLockfile) Release() error {
	if err := os.Truncate(l.path, 0); err != nil && !os.IsNotExist(err) {
		// Still drop the flock; a leftover payload is cosmetic.
		_ = l.fl.Unlock()
		return fmt.Errorf("failed to clear lockfile payload: %w", err)
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("failed to release lockfile %s: %w", l.path, err)
	}
	return nil
}

// readPayload parses "pid unix-timestamp" from the lockfile.
func (l *PIDLockfile) readPayload() (int, time.Time, bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, time.Time{}, false
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 {
		return 0, time.Time{}, false
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, time.Time{}, false
	}
	unix, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, time.Time{}, false
	}
	return pid, time.Unix(unix, 0), true
}

func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
