package resolvd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/ifnetns/ifnetns/log"
	"golang.org/x/sys/unix"
)

var (
	ErrAlreadyRunning = errors.New("daemon is already running")
	ErrNotRunning     = errors.New("no running daemon found")
)

// PidLock is the daemon's single-instance guard: a file holding the live
// instance's pid. Liveness is what matters, not file existence; a stale file
// left by a crashed instance never blocks startup.
type PidLock struct {
	path string

	// alive is overridable in tests.
	alive func(pid int) bool
}

func NewPidLock(path string) *PidLock {
	return &PidLock{
		path:  path,
		alive: processAlive,
	}
}

func (l *PidLock) Path() string {
	return l.path
}

// Acquire claims the lock for the calling process. A live holder is fatal; a
// stale file is removed and replaced.
func (l *PidLock) Acquire() error {
	if pid, ok := l.readPid(); ok && l.alive(pid) {
		return fmt.Errorf("%w : pid %d holds %s", ErrAlreadyRunning, pid, l.path)
	} else if _, statErr := os.Stat(l.path); statErr == nil {
		log.Warnf("Removing stale lock file %s", l.path)
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale lock file: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(strconv.Itoa(os.Getpid()) + "\n"); err != nil {
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	return nil
}

// Release removes the lock file. Safe to call on every exit path.
func (l *PidLock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SignalRunning sends sig to the live holder and returns its pid.
func (l *PidLock) SignalRunning(sig syscall.Signal) (int, error) {
	pid, ok := l.readPid()
	if !ok || !l.alive(pid) {
		return 0, fmt.Errorf("%w : lock file %s", ErrNotRunning, l.path)
	}
	if err := unix.Kill(pid, sig); err != nil {
		return 0, fmt.Errorf("failed to signal pid %d: %w", pid, err)
	}
	return pid, nil
}

func (l *PidLock) readPid() (int, bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// processAlive probes with signal 0. EPERM means the process exists but
// belongs to someone else, which still counts as alive.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
