package spreadsheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/ope-approval/internal/application/port"
	"github.com/garyjia/ope-approval/internal/domain/entity"
)

// ContentTypeXLSX is the media type of the exported workbook
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var exportHeader = []interface{}{
	"Employee Code", "Employee Name", "Payroll Month", "Date", "Client",
	"Project ID", "Project Name", "From", "To", "Travel Mode", "Amount", "Status", "Remarks",
}

// WorkbookExporter writes one row per entry of a work queue
type WorkbookExporter struct {
	logger *zap.Logger
}

// NewWorkbookExporter creates a new work-queue exporter
func NewWorkbookExporter(logger *zap.Logger) *WorkbookExporter {
	return &WorkbookExporter{logger: logger}
}

// ContentType returns the xlsx media type
func (w *WorkbookExporter) ContentType() string {
	return ContentTypeXLSX
}

// Export renders the queue into a single-sheet workbook named after the status
func (w *WorkbookExporter) Export(status entity.QueueStatus, items []*entity.WorkQueueItem) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := string(status)
	if sheet == "" {
		sheet = "Queue"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(sheet, "A1", "M1", style)
	}

	row := 2
	for _, item := range items {
		for _, e := range item.Entries {
			amount, _ := e.Amount.Round(2).Float64()
			values := []interface{}{
				item.EmployeeCode, item.EmployeeName, e.PayrollMonth, e.Date, e.Client,
				e.ProjectID, e.ProjectName, e.LocationFrom, e.LocationTo, e.TravelMode,
				amount, e.Status, e.Remarks,
			}
			cellName, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(sheet, cellName, &values); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", row, err)
			}
			row++
		}
	}

	_ = f.SetColWidth(sheet, "A", "M", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	w.logger.Debug("Work queue exported",
		zap.String("status", string(status)),
		zap.Int("rows", row-2))

	return buf.Bytes(), nil
}

// Verify interface compliance
var _ port.WorkQueueExporter = (*WorkbookExporter)(nil)
