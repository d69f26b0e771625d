// Package errs holds the error taxonomy of the approval workflow.
//
// Every structured error unwraps to a sentinel so callers can branch with
// errors.Is while still reading the detail fields through errors.As.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is returned for bad amounts or missing required fields.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when an employee, entry or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the caller lacks the role an action requires.
	ErrUnauthorized = errors.New("not authorized")

	// ErrMissingApprover is returned when routing cannot resolve a required approver.
	ErrMissingApprover = errors.New("missing approver")

	// ErrConflict is returned when a record is not in the expected pre-condition state.
	ErrConflict = errors.New("conflict")

	// ErrDuplicate is returned when an entry repeats the business key of another entry.
	ErrDuplicate = errors.New("duplicate entry")

	// ErrNoEligibleEntries is returned when a chain action finds nothing to act on.
	ErrNoEligibleEntries = errors.New("no eligible entries")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the missing resource and its key.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AuthorizationError names the actor and the refused action.
type AuthorizationError struct {
	Actor  string
	Action string
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s may not %s: %s", e.Actor, e.Action, e.Reason)
}

func (e *AuthorizationError) Unwrap() error { return ErrUnauthorized }

// MissingApproverError names the employee and the role that has no assignee.
type MissingApproverError struct {
	EmployeeCode string
	Role         string
}

func (e *MissingApproverError) Error() string {
	return fmt.Sprintf("no %s configured for employee %s", e.Role, e.EmployeeCode)
}

func (e *MissingApproverError) Unwrap() error { return ErrMissingApprover }

// ConflictError reports the expected and the actual state of a record.
type ConflictError struct {
	Resource string
	Key      string
	Expected string
	Actual   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s is %s, expected %s", e.Resource, e.Key, e.Actual, e.Expected)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// DuplicateEntryError reports the existing entry a new entry collides with.
type DuplicateEntryError struct {
	EmployeeCode string
	PayrollMonth string
	ExistingID   string
	Fields       []string
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("duplicate entry for %s in %s: matches entry %s on %s",
		e.EmployeeCode, e.PayrollMonth, e.ExistingID, strings.Join(e.Fields, ", "))
}

func (e *DuplicateEntryError) Unwrap() []error { return []error{ErrDuplicate, ErrConflict} }

// NoEligibleEntriesError reports a chain action that found nothing in the expected state.
type NoEligibleEntriesError struct {
	EmployeeCode string
	ApproverCode string
	Action       string
	Expected     string
}

func (e *NoEligibleEntriesError) Error() string {
	return fmt.Sprintf("no entries of %s eligible for %s by %s (expected %s)",
		e.EmployeeCode, e.Action, e.ApproverCode, e.Expected)
}

func (e *NoEligibleEntriesError) Unwrap() []error {
	return []error{ErrNoEligibleEntries, ErrConflict}
}

// DuplicateKeyFields lists the business-key fields compared for duplicates.
var DuplicateKeyFields = []string{
	"date", "client", "project_id", "project_name", "project_type",
	"location_from", "location_to", "travel_mode", "amount",
}
