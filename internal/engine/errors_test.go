package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *SyncError
		want string
	}{
		{
			name: "source and row",
			err:  &SyncError{Code: ErrCodeInputRow, Message: "row dropped", Source: "a.csv", Row: 7},
			want: "INPUT_ROW: row dropped (source=a.csv, row=7)",
		},
		{
			name: "source only",
			err:  &SyncError{Code: ErrCodeInvalidInput, Message: "extract header is incomplete", Source: "a.csv"},
			want: "INVALID_INPUT: extract header is incomplete (source=a.csv)",
		},
		{
			name: "key",
			err:  &SyncError{Code: ErrCodeInvariantViolation, Message: "merged table has duplicate key", Key: "A|B"},
			want: "INVARIANT_VIOLATION: merged table has duplicate key (key=A|B)",
		},
		{
			name: "cause",
			err:  &SyncError{Code: ErrCodeCommitFailed, Message: "commit failed", Err: errors.New("disk full")},
			want: "COMMIT_FAILED: commit failed: disk full",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestSyncError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("apply: %w", &SyncError{Code: ErrCodeCommitFailed, Err: cause})

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCommitError(err))
	assert.False(t, IsInvariantError(err))
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsInvariantError(NewInvariantError("bad %d", 1)))
	assert.True(t, IsAlreadyApplied(NewAlreadyAppliedError("abc")))
	assert.True(t, IsInvalidInput(&SyncError{Code: ErrCodeInvalidInput}))
	assert.True(t, Recoverable(&SyncError{Code: ErrCodeInputRow}))
	assert.False(t, Recoverable(NewInvariantError("x")))
	assert.False(t, IsAlreadyApplied(errors.New("plain")))
	assert.False(t, IsAlreadyApplied(nil))

	assert.Contains(t, NewAlreadyAppliedError("abc").Error(), "batch abc was already applied")
}
