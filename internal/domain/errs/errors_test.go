package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelUnwrapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", &ValidationError{Field: "amount", Reason: "must be positive"}, ErrValidation},
		{"not found", &NotFoundError{Resource: "entry", Key: "x"}, ErrNotFound},
		{"authorization", &AuthorizationError{Actor: "E1", Action: "approve", Reason: "not an approver"}, ErrUnauthorized},
		{"missing approver", &MissingApproverError{EmployeeCode: "E1", Role: "partner"}, ErrMissingApprover},
		{"conflict", &ConflictError{Resource: "entry", Key: "x", Expected: "rejected", Actual: "approved"}, ErrConflict},
		{"duplicate", &DuplicateEntryError{EmployeeCode: "E1", PayrollMonth: "Jan 2025", ExistingID: "x"}, ErrDuplicate},
		{"duplicate is a conflict", &DuplicateEntryError{}, ErrConflict},
		{"no eligible", &NoEligibleEntriesError{EmployeeCode: "E1", ApproverCode: "RM1"}, ErrNoEligibleEntries},
		{"no eligible is a conflict", &NoEligibleEntriesError{}, ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("operation: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.sentinel))
		})
	}
}

func TestErrorsAs(t *testing.T) {
	err := fmt.Errorf("submit: %w", &MissingApproverError{EmployeeCode: "E7", Role: "reporting manager"})

	var target *MissingApproverError
	if assert.True(t, errors.As(err, &target)) {
		assert.Equal(t, "E7", target.EmployeeCode)
		assert.Equal(t, "no reporting manager configured for employee E7", target.Error())
	}
}

func TestValidationErrorMessage(t *testing.T) {
	assert.Equal(t, `invalid amount "-5": must be greater than zero`,
		(&ValidationError{Field: "amount", Value: "-5", Reason: "must be greater than zero"}).Error())
	assert.Equal(t, "invalid client: is required",
		(&ValidationError{Field: "client", Reason: "is required"}).Error())
}
