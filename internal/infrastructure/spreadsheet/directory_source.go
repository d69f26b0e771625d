// Package spreadsheet reads HRMS directory exports and renders work queues as
// xlsx workbooks.
package spreadsheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/ope-approval/internal/application/port"
	"github.com/garyjia/ope-approval/internal/domain/entity"
)

type column int

const (
	colCode column = iota
	colName
	colDesignation
	colGender
	colRMCode
	colRMName
	colPartnerCode
	colPartnerName
	colLimit
	columnCount
)

// headerAliases maps normalized header text to a directory column
var headerAliases = map[string]column{
	"employee code":          colCode,
	"emp code":               colCode,
	"employee id":            colCode,
	"employee name":          colName,
	"name":                   colName,
	"designation":            colDesignation,
	"gender":                 colGender,
	"reporting manager code": colRMCode,
	"rm code":                colRMCode,
	"reporting manager name": colRMName,
	"reporting manager":      colRMName,
	"rm name":                colRMName,
	"partner code":           colPartnerCode,
	"partner name":           colPartnerName,
	"partner":                colPartnerName,
	"ope limit":              colLimit,
	"limit":                  colLimit,
}

// HRMSReader reads the first worksheet of an HRMS export.
// The first row is the header; columns are matched by name, in any order.
type HRMSReader struct {
	logger *zap.Logger
}

// NewHRMSReader creates a new HRMS workbook reader
func NewHRMSReader(logger *zap.Logger) *HRMSReader {
	return &HRMSReader{logger: logger}
}

// ReadEmployees parses every data row into an employee; blank rows are skipped
func (h *HRMSReader) ReadEmployees(r io.Reader) ([]*entity.Employee, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = file.Close() }()

	sheet := file.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("no worksheet found")
	}

	rows, err := file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("worksheet is empty")
	}

	index, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	var employees []*entity.Employee
	for i, row := range rows[1:] {
		line := i + 2
		emp := &entity.Employee{
			Code:                 cell(row, index[colCode]),
			Name:                 cell(row, index[colName]),
			Designation:          cell(row, index[colDesignation]),
			Gender:               cell(row, index[colGender]),
			ReportingManagerCode: cell(row, index[colRMCode]),
			ReportingManagerName: cell(row, index[colRMName]),
			PartnerCode:          cell(row, index[colPartnerCode]),
			PartnerName:          cell(row, index[colPartnerName]),
		}
		if emp.Code == "" && emp.Name == "" {
			continue
		}
		if emp.Code == "" || emp.Name == "" {
			return nil, fmt.Errorf("row %d: employee code and name are required", line)
		}

		if raw := cell(row, index[colLimit]); raw != "" {
			limit, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
			if err != nil || limit.IsNegative() {
				return nil, fmt.Errorf("row %d: invalid OPE limit %q", line, raw)
			}
			emp.OPELimit = &limit
		}

		employees = append(employees, emp)
	}

	h.logger.Info("HRMS workbook parsed",
		zap.String("sheet", sheet),
		zap.Int("employees", len(employees)))

	return employees, nil
}

func mapHeader(header []string) ([columnCount]int, error) {
	var index [columnCount]int
	for i := range index {
		index[i] = -1
	}

	for i, h := range header {
		if col, ok := headerAliases[normalizeHeader(h)]; ok && index[col] < 0 {
			index[col] = i
		}
	}

	if index[colCode] < 0 || index[colName] < 0 {
		return index, fmt.Errorf("header must contain employee code and employee name columns")
	}
	return index, nil
}

func normalizeHeader(header string) string {
	header = strings.ToLower(strings.TrimSpace(header))
	header = strings.NewReplacer("_", " ", "-", " ").Replace(header)
	return strings.Join(strings.Fields(header), " ")
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Verify interface compliance
var _ port.DirectorySource = (*HRMSReader)(nil)
