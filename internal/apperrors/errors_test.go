package apperrors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "validation", err: fmt.Errorf("%w: unbalanced", ErrValidation), want: false},
		{name: "not found", err: ErrNotFound, want: false},
		{name: "timeout", err: fmt.Errorf("write journal: %w", ErrTimeout), want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "io", err: NewIOError("open", "/tmp/x", errors.New("disk on fire")), want: true},
		{name: "io missing file", err: NewIOError("open", "/tmp/x", os.ErrNotExist), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestNewIOError(t *testing.T) {
	assert.Nil(t, NewIOError("open", "x", nil))

	err := NewIOError("rename", "/books/journals/main", os.ErrPermission)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Contains(t, err.Error(), "/books/journals/main")

	var ioErr *IOError
	assert.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "rename", ioErr.Op)
}
