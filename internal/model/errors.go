package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a projection or posting id is unknown.
	ErrNotFound = errors.New("not found")

	// ErrDetailUnavailable marks a detail fetch whose source URL could not be
	// read. GetDetail reports it through FullDetail.Unavailable instead of
	// returning it.
	ErrDetailUnavailable = errors.New("detail unavailable")
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// SourceError scopes a failure to one source. The orchestrator records it in
// RunStats and never lets it reach sibling sources.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NormalizationError means a single raw posting could not become a Posting.
type NormalizationError struct {
	Field  string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize: %s %s", e.Field, e.Reason)
}

// ConfigurationError is fatal at startup.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
