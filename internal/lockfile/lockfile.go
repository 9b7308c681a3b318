// Package lockfile provides the process-exclusivity lock that keeps at most
// one backup orchestration run active system-wide.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrAlreadyRunning indicates the lock is held by another process. A second
// invocation must fail immediately rather than queue or block.
var ErrAlreadyRunning = errors.New("another backup is already running")

// Lock is a held exclusive file lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the exclusive lock at path, failing fast when it is held.
// The holder's PID is written into the file for diagnostics.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		holder, _ := os.ReadFile(path)
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			if pid := strings.TrimSpace(string(holder)); pid != "" {
				return nil, fmt.Errorf("%w (PID %s)", ErrAlreadyRunning, pid)
			}
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	_ = f.Truncate(0)
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Sync()
	return &Lock{file: f, path: path}, nil
}

// Release unlocks and removes the lock file. Safe to call once on every exit
// path; a nil receiver or double release is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
	_ = os.Remove(l.path)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
