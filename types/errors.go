/*
Copyright © 2026 finconcept contributors
*/
package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages.
var (
	// ErrEntryNotFound is returned when a cache key has no live entry.
	ErrEntryNotFound = errors.New("cache entry not found")
	// ErrCacheClosed is returned for operations on a closed cache store.
	ErrCacheClosed = errors.New("cache store is closed")
	// ErrConfigInvalid is returned when configuration fails validation.
	ErrConfigInvalid = errors.New("configuration is invalid")
)

// SourceError provides structured error information for knowledge source failures
type SourceError struct {
	Source     string `json:"source"`
	Op         string `json:"op"`
	StatusCode int    `json:"statusCode,omitempty"`
	Err        error  `json:"-"`
}

func (e *SourceError) Error() string {
	msg := fmt.Sprintf("%s: %s failed", e.Source, e.Op)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError creates a new structured source error
func NewSourceError(source, op string, statusCode int, err error) *SourceError {
	return &SourceError{
		Source:     source,
		Op:         op,
		StatusCode: statusCode,
		Err:        err,
	}
}
