package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ope-approval/internal/domain/errs"
)

// writeError maps the error taxonomy onto a status code and a structured body
func writeError(c *gin.Context, err error) {
	status, code := classify(err)

	resp := Response{Success: false, Code: code, Error: err.Error(), Details: details(err)}
	if status == http.StatusInternalServerError {
		resp.Error = "internal error"
	}
	c.JSON(status, resp)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, errs.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, errs.ErrNoEligibleEntries):
		return http.StatusConflict, "no_eligible_entries"
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, errs.ErrMissingApprover):
		return http.StatusUnprocessableEntity, "missing_approver"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func details(err error) interface{} {
	var (
		validation *errs.ValidationError
		notFound   *errs.NotFoundError
		authz      *errs.AuthorizationError
		missing    *errs.MissingApproverError
		duplicate  *errs.DuplicateEntryError
		noEligible *errs.NoEligibleEntriesError
		conflict   *errs.ConflictError
	)

	switch {
	case errors.As(err, &validation):
		return gin.H{"field": validation.Field, "value": validation.Value, "reason": validation.Reason}
	case errors.As(err, &notFound):
		return gin.H{"resource": notFound.Resource, "key": notFound.Key}
	case errors.As(err, &authz):
		return gin.H{"actor": authz.Actor, "action": authz.Action, "reason": authz.Reason}
	case errors.As(err, &missing):
		return gin.H{"employee_code": missing.EmployeeCode, "role": missing.Role}
	case errors.As(err, &duplicate):
		return gin.H{"employee_code": duplicate.EmployeeCode, "payroll_month": duplicate.PayrollMonth,
			"existing_id": duplicate.ExistingID, "fields": duplicate.Fields}
	case errors.As(err, &noEligible):
		return gin.H{"employee_code": noEligible.EmployeeCode, "approver_code": noEligible.ApproverCode,
			"action": noEligible.Action, "expected": noEligible.Expected}
	case errors.As(err, &conflict):
		return gin.H{"resource": conflict.Resource, "key": conflict.Key, "expected": conflict.Expected, "actual": conflict.Actual}
	default:
		return nil
	}
}

// joinedMessages splits an errors.Join result into its messages
func joinedMessages(err error) []string {
	if err == nil {
		return nil
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		var msgs []string
		for _, e := range multi.Unwrap() {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}
