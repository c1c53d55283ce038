package task

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const lockFileName = "run.lock"

// RunLock prevents two ollama-code runs from mutating the same workspace
// batch concurrently. The lock file holds the owning PID; locks left by
// dead processes are reclaimed automatically.
type RunLock struct {
	path string
}

// NewRunLock creates a lock manager for the given metadata directory.
func NewRunLock(dir string) *RunLock {
	return &RunLock{path: filepath.Join(dir, lockFileName)}
}

// Acquire attempts to take the lock. Returns an error if another live
// process holds it.
func (l *RunLock) Acquire() error {
	if err := l.tryCreate(); err == nil {
		return nil
	} else if !os.IsExist(err) {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("failed to read existing lock file: %w", err)
	}

	pid, parseErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if parseErr == nil && processExists(pid) {
		return fmt.Errorf("another run is active in this workspace (PID %d)", pid)
	}

	// Stale or invalid lock: reclaim it. Only retry once.
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale lock file: %w", err)
	}
	if err := l.tryCreate(); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("lock acquired by another process during retry")
		}
		return fmt.Errorf("failed to create lock file on retry: %w", err)
	}
	return nil
}

// Release removes the lock file. Idempotent.
func (l *RunLock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (l *RunLock) tryCreate() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, writeErr := fmt.Fprintf(f, "%d", os.Getpid())
	f.Close()
	if writeErr != nil {
		os.Remove(l.path)
		return fmt.Errorf("failed to write lock file: %w", writeErr)
	}
	return nil
}

// processExists checks for a live process with signal 0.
func processExists(pid int) bool {
	if pid == os.Getpid() {
		return true
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
