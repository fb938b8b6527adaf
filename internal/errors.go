package internal

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session record is missing or unreadable
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidSessionID is returned for ids that cannot be used as a storage key
var ErrInvalidSessionID = errors.New("invalid session id")

// ErrInvalidStatus is returned for statuses outside the session status enumeration
var ErrInvalidStatus = errors.New("invalid session status")

// StorageError represents errors accessing session storage files
type StorageError struct {
	Path string
	Op   string // "read", "write", "delete", "list"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// CheckpointStoreError represents failures reaching or querying the checkpoint store
type CheckpointStoreError struct {
	Op       string // "connect", "count", "list", "delete", "summary"
	ThreadID string
	Err      error
}

func (e *CheckpointStoreError) Error() string {
	if e.ThreadID == "" {
		return fmt.Sprintf("checkpoint store error: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("checkpoint store error: %s [%s]: %v", e.Op, e.ThreadID, e.Err)
}

func (e *CheckpointStoreError) Unwrap() error {
	return e.Err
}

// ConfigError represents an invalid configuration value
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error [%s]: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
