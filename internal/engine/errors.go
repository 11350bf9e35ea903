package engine

import (
	"errors"
	"fmt"
)

// SyncError represents an error detected while running a batch.
//
// Sync errors include:
//   - Input row: a record could not be typed and was dropped (recoverable)
//   - Invalid input: a file or baseline is structurally unusable
//   - Invariant violation: the merged table broke a post-condition
//   - Commit failed: the next baseline could not be persisted
//   - Already applied: the batch id is recorded in the sync state
//
// SyncError includes structured fields for diagnostics and recovery.
type SyncError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Phase is the run phase that raised the error.
	Phase Phase

	// Message is a human-readable description.
	Message string

	// Source names the extract involved, if any.
	Source string

	// Row is the 1-based data row in Source, if any.
	Row int

	// Key is the composite key involved, if any.
	Key string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes sync errors.
type ErrorCode string

const (
	// ErrCodeInputRow indicates a single record was dropped during normalization.
	ErrCodeInputRow ErrorCode = "INPUT_ROW"

	// ErrCodeInvalidInput indicates a structurally unusable file, schema or baseline.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeInvariantViolation indicates the merged table failed its checks.
	ErrCodeInvariantViolation ErrorCode = "INVARIANT_VIOLATION"

	// ErrCodeCommitFailed indicates the next baseline or state was not persisted.
	ErrCodeCommitFailed ErrorCode = "COMMIT_FAILED"

	// ErrCodeAlreadyApplied indicates the batch was applied by an earlier run.
	ErrCodeAlreadyApplied ErrorCode = "ALREADY_APPLIED"
)

// Error implements the error interface.
func (e *SyncError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Source != "" && e.Row > 0:
		msg += fmt.Sprintf(" (source=%s, row=%d)", e.Source, e.Row)
	case e.Source != "":
		msg += fmt.Sprintf(" (source=%s)", e.Source)
	case e.Key != "":
		msg += fmt.Sprintf(" (key=%s)", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *SyncError) Unwrap() error { return e.Err }

func hasCode(err error, code ErrorCode) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsInvariantError returns true if the merged table failed its invariants.
// Uses errors.As to handle wrapped errors.
func IsInvariantError(err error) bool { return hasCode(err, ErrCodeInvariantViolation) }

// IsCommitError returns true if persisting the run failed.
func IsCommitError(err error) bool { return hasCode(err, ErrCodeCommitFailed) }

// IsAlreadyApplied returns true if the batch was refused as a replay.
func IsAlreadyApplied(err error) bool { return hasCode(err, ErrCodeAlreadyApplied) }

// IsInvalidInput returns true for structural input errors.
func IsInvalidInput(err error) bool { return hasCode(err, ErrCodeInvalidInput) }

// Recoverable reports whether processing can continue past err. Only
// dropped input rows are recoverable; everything else aborts the run.
func Recoverable(err error) bool { return hasCode(err, ErrCodeInputRow) }

// NewInvariantError creates a SyncError for a failed post-condition.
func NewInvariantError(format string, args ...any) *SyncError {
	return &SyncError{
		Code:    ErrCodeInvariantViolation,
		Phase:   PhaseMerging,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewAlreadyAppliedError creates a SyncError for a replayed batch.
func NewAlreadyAppliedError(batchID string) *SyncError {
	return &SyncError{
		Code:    ErrCodeAlreadyApplied,
		Phase:   PhaseIdle,
		Message: fmt.Sprintf("batch %s was already applied", batchID),
	}
}
