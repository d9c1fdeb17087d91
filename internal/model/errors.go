package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
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

// ParseRetryAfter parses a Retry-After header value in seconds. Returns zero
// if absent or unparseable.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// CorruptStoreError means the store exists but does not parse into the
// expected schema.
type CorruptStoreError struct {
	Path string
	Err  error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("store %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptStoreError) Unwrap() error { return e.Err }

// AreaMismatchError is returned when a fetch searches another location or
// radius than the one the store was built for. Incremental windows would
// miss the older listings of the new area.
type AreaMismatchError struct {
	Path          string
	StoreLocation string
	StoreRadiusKM int
	Location      string
	RadiusKM      int
}

func (e *AreaMismatchError) Error() string {
	return fmt.Sprintf("store %s holds jobs for %q within %d km, not %q within %d km; use another store path for a different area",
		e.Path, e.StoreLocation, e.StoreRadiusKM, e.Location, e.RadiusKM)
}

// StoreWriteError is returned when persisting the store fails. The previous
// durable state is left in place.
type StoreWriteError struct {
	Path string
	Err  error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("writing store %s: %v", e.Path, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// UnknownRecordError is returned for operations on an id the store lacks.
type UnknownRecordError struct {
	ID string
}

func (e *UnknownRecordError) Error() string {
	return fmt.Sprintf("unknown record %q", e.ID)
}

// WorkspaceExistsError is returned when a session identifier is taken.
type WorkspaceExistsError struct {
	ID string
}

func (e *WorkspaceExistsError) Error() string {
	return fmt.Sprintf("session %s already exists", e.ID)
}

// SessionNotFoundError is returned when an identifier resolves to no session.
type SessionNotFoundError struct {
	ID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session %s not found", e.ID)
}

// CheckpointCorruptError means a checkpoint or its partial results cannot be
// trusted.
type CheckpointCorruptError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CheckpointCorruptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("checkpoint %s is corrupt: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("checkpoint %s is corrupt: %s", e.Path, e.Reason)
}

func (e *CheckpointCorruptError) Unwrap() error { return e.Err }

// ResumeMismatchError is returned when a checkpoint was written for a
// different input sequence or different criteria than the current run.
type ResumeMismatchError struct {
	SessionID string
	Reason    string
}

func (e *ResumeMismatchError) Error() string {
	return fmt.Sprintf("cannot resume session %s: %s (rerun with --no-resume to start over)", e.SessionID, e.Reason)
}

// BatchValidationKind says what was wrong with a classification response.
type BatchValidationKind string

const (
	WrongCount    BatchValidationKind = "wrong_count"
	UnparseableID BatchValidationKind = "unparseable_id"
	UnknownLabel  BatchValidationKind = "unknown_label"
	DuplicateID   BatchValidationKind = "duplicate_id"
)

// BatchValidationError is a structurally invalid classification response.
// It is never coerced into a default label.
type BatchValidationError struct {
	Kind     BatchValidationKind
	Expected int
	Got      int
	Missing  []int
	Detail   string
}

func (e *BatchValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid classification response (%s)", e.Kind)
	if e.Kind == WrongCount {
		fmt.Fprintf(&b, ": expected %d results, got %d", e.Expected, e.Got)
		if len(e.Missing) > 0 {
			fmt.Fprintf(&b, ", missing indices %v", e.Missing)
		}
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	return b.String()
}

// EnrichmentFailure describes a per-record scrape failure. It is recorded in
// the record's Details and logged, never returned up the batch.
type EnrichmentFailure struct {
	ID      string
	Warning string
	Err     error
}

func (e *EnrichmentFailure) Error() string {
	return fmt.Sprintf("enriching %s: %s: %v", e.ID, e.Warning, e.Err)
}

func (e *EnrichmentFailure) Unwrap() error { return e.Err }

// Details converts the failure into the payload stored on the record.
func (e *EnrichmentFailure) Details(url string, at time.Time) Details {
	d := Details{URL: url, Success: false, Warning: e.Warning, ScrapedAt: at}
	if e.Err != nil {
		d.Error = e.Err.Error()
	}
	return d
}
