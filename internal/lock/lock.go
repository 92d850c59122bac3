// Package lock provides exclusive access to a THERMOCALC working directory.
//
// THERMOCALC rewrites tc-log.txt and the scriptfile guesses in place, so two
// psb processes must not calculate in the same directory at once. The lock
// is an flock on <workdir>/.psb/lock; the holder records itself in
// <workdir>/.psb/lock.json so waiting commands can say who is calculating.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/petrolab/psb/internal/util"
)

// Dir is the psb state directory inside a working directory.
const Dir = ".psb"

const (
	lockFile      = "lock"
	holderFile    = "lock.json"
	retryInterval = 100 * time.Millisecond
)

var (
	ErrLocked    = errors.New("working directory is locked by another psb process")
	ErrNotLocked = errors.New("working directory is not locked")
	ErrBadHolder = errors.New("unreadable lock holder")
)

// DefaultTimeout is how long Acquire waits for a busy lock.
const DefaultTimeout = 5 * time.Second

// Holder is the process holding a lock.
type Holder struct {
	PID     int       `json:"pid"`
	Since   time.Time `json:"since"`
	Command string    `json:"command,omitempty"`
	Host    string    `json:"host,omitempty"`
}

// Alive reports whether the holding process still runs.
func (h *Holder) Alive() bool { return pidAlive(h.PID) }

func (h *Holder) String() string {
	return fmt.Sprintf("PID %d (%s, since %s)", h.PID, h.Command, h.Since.Format(time.RFC3339))
}

// Lock guards one working directory.
type Lock struct {
	dir string
	fl  *flock.Flock
}

// New returns the lock of workdir. Nothing touches the disk until Acquire.
func New(workdir string) *Lock {
	return &Lock{dir: filepath.Join(workdir, Dir)}
}

func (l *Lock) path(name string) string { return filepath.Join(l.dir, name) }

// Acquire takes the lock, polling until timeout (DefaultTimeout when not
// positive) or ctx ends. command is recorded as the holder.
func (l *Lock) Acquire(ctx context.Context, timeout time.Duration, command string) error {
	if l.fl != nil {
		return nil
	}
	// the working directory itself must exist
	if err := os.Mkdir(l.dir, 0755); err != nil && !os.IsExist(err) {
		return fmt.Errorf("creating %s: %w", l.dir, err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	wait, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fl := flock.New(l.path(lockFile))
	ok, err := fl.TryLockContext(wait, retryInterval)
	switch {
	case err != nil && ctx.Err() != nil:
		return ctx.Err()
	case err != nil && !errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("acquiring lock: %w", err)
	case !ok:
		if h, herr := l.Holder(); herr == nil {
			return fmt.Errorf("%w: %s", ErrLocked, h)
		}
		return ErrLocked
	}

	host, _ := os.Hostname()
	h := Holder{PID: os.Getpid(), Since: time.Now(), Command: command, Host: host}
	if err := util.AtomicWriteJSON(l.path(holderFile), h); err != nil {
		_ = fl.Unlock()
		return fmt.Errorf("recording lock holder: %w", err)
	}
	l.fl = fl
	return nil
}

// Release gives the lock up. Releasing a lock not held is a no-op.
func (l *Lock) Release() error {
	if l.fl == nil {
		return nil
	}
	fl := l.fl
	l.fl = nil
	if err := os.Remove(l.path(holderFile)); err != nil && !os.IsNotExist(err) {
		_ = fl.Unlock()
		return fmt.Errorf("removing lock holder: %w", err)
	}
	if err := fl.Unlock(); err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return nil
}

// Holder returns the recorded holder, ErrNotLocked when there is none.
func (l *Lock) Holder() (*Holder, error) {
	data, err := os.ReadFile(l.path(holderFile))
	if os.IsNotExist(err) {
		return nil, ErrNotLocked
	}
	if err != nil {
		return nil, fmt.Errorf("reading lock holder: %w", err)
	}
	var h Holder
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHolder, err)
	}
	return &h, nil
}

// Status describes the lock state for psb check.
func (l *Lock) Status() string {
	if l.fl != nil {
		return "held by this process"
	}
	h, err := l.Holder()
	switch {
	case errors.Is(err, ErrNotLocked):
		return "free"
	case err != nil:
		return err.Error()
	case !h.Alive():
		return fmt.Sprintf("stale, PID %d is gone", h.PID)
	}
	return "held by " + h.String()
}
