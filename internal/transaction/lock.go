// Package transaction serializes provisioning runs through an exclusive
// on-disk lock, so two concurrent installs cannot race on the bin
// directory or the symlink alias.
package transaction

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
)

const (
	// StaleLockThreshold is the maximum age of a lock before it is
	// considered abandoned regardless of its recorded pid.
	StaleLockThreshold = 10 * time.Minute

	lockFileName = "provision.lock"
)

var (
	ErrLockExists = errors.New("provision lock exists: another install may be in progress")
)

// lockInfo is the metadata written into the lock file.
type lockInfo struct {
	ID        string    `json:"id"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	CreatedAt time.Time `json:"created_at"`
}

// Lock represents a held provisioning lock.
type Lock struct {
	path string
	id   string
}

// AcquireLock attempts to acquire the exclusive provisioning lock under
// dir. Uses O_CREATE|O_EXCL for atomic creation; a stale lock (dead
// owner process, or older than StaleLockThreshold) is broken once.
func AcquireLock(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lockPath := filepath.Join(dir, lockFileName)

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if !isLockStale(lockPath) {
			return nil, ErrLockExists
		}
		// Break the stale lock and retry once
		os.Remove(lockPath)
		file, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err != nil {
			return nil, ErrLockExists
		}
	}

	hostname, _ := os.Hostname()
	info := lockInfo{
		ID:        uuid.New().String(),
		PID:       os.Getpid(),
		Hostname:  hostname,
		CreatedAt: time.Now().UTC(),
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock metadata: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(lockPath)
		return nil, fmt.Errorf("close lock file: %w", err)
	}

	return &Lock{path: lockPath, id: info.ID}, nil
}

// ID returns the unique identifier of this lock acquisition.
func (l *Lock) ID() string {
	return l.id
}

// Release releases the lock.
func (l *Lock) Release() error {
	if l.path == "" {
		return nil
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}

	l.path = ""
	return nil
}

// isLockStale reports whether the lock at lockPath can be safely broken:
// its owner process is gone, or the lock has outlived the threshold.
func isLockStale(lockPath string) bool {
	fi, err := os.Stat(lockPath)
	if err != nil {
		// Vanished (maybe released concurrently); let the retry decide
		return os.IsNotExist(err)
	}

	if time.Since(fi.ModTime()) > StaleLockThreshold {
		return true
	}

	data, err := os.ReadFile(lockPath)
	if err != nil {
		return false
	}

	var info lockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		// Unreadable metadata from an interrupted write; age alone decides
		return false
	}

	return !pidAlive(info.PID)
}

// pidAlive reports whether a process with the given pid exists.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 probes for existence without delivering anything
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
