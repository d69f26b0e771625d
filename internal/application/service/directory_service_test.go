package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/ope-approval/internal/domain/entity"
	"github.com/garyjia/ope-approval/internal/domain/errs"
)

type fakeDirectorySource struct {
	employees []*entity.Employee
	err       error
}

func (f *fakeDirectorySource) ReadEmployees(io.Reader) ([]*entity.Employee, error) {
	return f.employees, f.err
}

func TestDirectoryService_ImportWorkbook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	source := &fakeDirectorySource{employees: []*entity.Employee{
		{Code: " E100 ", Name: "New Hire", ReportingManagerCode: "RM50", PartnerCode: "P50", PartnerName: "Pat Partner"},
		{Code: "RM50", Name: "Rina Manager", PartnerCode: "P50"},
	}}
	svc := NewDirectoryService(f.store.Directory(), source, f.store, f.roles, f.logger)

	result, err := svc.ImportWorkbook(ctx, hrCode, strings.NewReader("xlsx"))
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Employees: 2, ReportingManagers: 1, Partners: 1}, result)

	emp, err := f.store.Directory().GetEmployee(ctx, "E100")
	require.NoError(t, err)
	require.NotNil(t, emp)
	assert.Equal(t, "RM50", emp.ReportingManagerCode)

	rm, err := f.store.Directory().GetReportingManager(ctx, "RM50")
	require.NoError(t, err)
	require.NotNil(t, rm)
	assert.Equal(t, "Rina Manager", rm.Name, "name falls back to the manager's own employee row")

	p, err := f.roles.Resolve(ctx, "P50")
	require.NoError(t, err)
	assert.Equal(t, entity.RolePartner, p.Role)
	assert.Equal(t, "Pat Partner", p.Name)
}

func TestDirectoryService_ImportWorkbookRequiresHR(t *testing.T) {
	f := newFixture(t)
	svc := NewDirectoryService(f.store.Directory(), &fakeDirectorySource{}, f.store, f.roles, f.logger)

	_, err := svc.ImportWorkbook(context.Background(), rmCode, strings.NewReader(""))
	assert.True(t, errors.Is(err, errs.ErrUnauthorized))
}

func TestDirectoryService_ImportWorkbookBadFile(t *testing.T) {
	f := newFixture(t)
	svc := NewDirectoryService(f.store.Directory(), &fakeDirectorySource{err: errors.New("zip: not a valid zip file")}, f.store, f.roles, f.logger)

	_, err := svc.ImportWorkbook(context.Background(), hrCode, strings.NewReader(""))
	var verr *errs.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "workbook", verr.Field)

	_, err = svc.Import(context.Background(), nil)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}
