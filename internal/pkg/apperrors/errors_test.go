package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorError(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		expected string
	}{
		{
			name: "With Code",
			appError: &AppError{
				Code:    "TEST_CODE",
				Message: "This is a test error",
			},
			expected: "[TEST_CODE] This is a test error",
		},
		{
			name: "Without Code",
			appError: &AppError{
				Message: "This is a test error without code",
			},
			expected: "This is a test error without code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.appError.Error()
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("amount", "must be a finite number")

	assert.ErrorIs(t, err, ErrValidation)

	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, "amount", vErr.Field)
	assert.Equal(t, "must be a finite number", vErr.Message)
	assert.Equal(t, "validation failed for field 'amount': must be a finite number", vErr.Error())
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("Customer", "abc")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "Customer not found")
	assert.EqualError(t, &NotFoundError{}, "Resource not found")
}

func TestWrapStorageError(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapStorageError(cause, "failed to write data file")

	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "[STORAGE_ERROR] failed to write data file")
}
