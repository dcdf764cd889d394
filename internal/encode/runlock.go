package encode

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"fftoolbox/internal/services"
)

// RunLock serializes encode invocations across processes. One ffmpeg
// already saturates the machine, so concurrent runs only slow each
// other down and skew size-target results.
type RunLock struct {
	path string
	lock *flock.Flock
}

// NewRunLock prepares a lock at path without acquiring it.
func NewRunLock(path string) *RunLock {
	return &RunLock{path: path, lock: flock.New(path)}
}

// Acquire takes the lock, failing immediately when another invocation
// holds it.
func (l *RunLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "encode", "acquire lock", "cannot create lock directory", err)
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrExecution, "encode", "acquire lock", "cannot acquire run lock", err)
	}
	if !ok {
		return services.Wrap(services.ErrExecution, "encode", "acquire lock",
			fmt.Sprintf("another encode is already running (lock held at %s)", l.path), nil)
	}
	return nil
}

// Release drops the lock. Safe to call after a failed Acquire.
func (l *RunLock) Release() error {
	return l.lock.Unlock()
}

// Path returns the lock file location.
func (l *RunLock) Path() string {
	return l.path
}
