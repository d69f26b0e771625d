package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/ope-approval/internal/application/service"
	"github.com/garyjia/ope-approval/internal/domain/entity"
	"github.com/garyjia/ope-approval/internal/domain/errs"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps               Dependencies
	maxAttachmentBytes int64
	logger             Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, maxAttachmentBytes int64, logger Logger) *Handlers {
	return &Handlers{
		deps:               deps,
		maxAttachmentBytes: maxAttachmentBytes,
		logger:             logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Version    string      `json:"version"`
	Components interface{} `json:"components,omitempty"`
}

// SaveDraftsRequest is the body of POST /api/ope/drafts/batch
type SaveDraftsRequest struct {
	Entries []service.DraftInput `json:"entries"`
}

// SaveDraftsResponse lists the saved drafts and the per-entry failures
type SaveDraftsResponse struct {
	Saved  []*entity.ExpenseEntry `json:"saved"`
	Failed []string               `json:"failed,omitempty"`
}

// SubmitRequest is the body of POST /api/ope/submit
type SubmitRequest struct {
	PayrollMonth string `json:"payroll_month"`
}

// RejectRequest is the body of level and single-entry rejections
type RejectRequest struct {
	EmployeeCode string `json:"employee_code"`
	Reason       string `json:"reason"`
}

// EntryActionRequest names the owner of the entry acted on
type EntryActionRequest struct {
	EmployeeCode string `json:"employee_code"`
}

// EditAmountRequest is the body of PUT /api/ope/entries/:entry_id/amount
type EditAmountRequest struct {
	EmployeeCode string          `json:"employee_code"`
	Amount       decimal.Decimal `json:"amount"`
}

// EditTotalRequest is the body of PUT /api/ope/months/total
type EditTotalRequest struct {
	EmployeeCode string          `json:"employee_code"`
	PayrollMonth string          `json:"payroll_month"`
	Total        decimal.Decimal `json:"total"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	healthy, components := true, interface{}(nil)
	if h.deps.Health != nil {
		healthy, components = h.deps.Health()
	}

	resp := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Version:    "1.0.0",
		Components: components,
	}
	status := http.StatusOK
	if !healthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, Response{Success: healthy, Data: resp})
}

// Me handles GET /api/me
func (h *Handlers) Me(c *gin.Context) {
	ok(c, principal(c))
}

// SaveDraft handles POST /api/ope/drafts as JSON or as multipart with a "payload" field and an optional "attachment" file
func (h *Handlers) SaveDraft(c *gin.Context) {
	var in service.DraftInput
	var att *service.Attachment

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := json.Unmarshal([]byte(c.PostForm("payload")), &in); err != nil {
			badRequest(c, "payload", err)
			return
		}
		var err error
		if att, err = h.readAttachment(c); err != nil {
			writeError(c, err)
			return
		}
	} else if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "body", err)
		return
	}

	entry, err := h.deps.Drafts.SaveDraft(c.Request.Context(), principal(c).Code, in, att)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: entry})
}

// SaveDrafts handles POST /api/ope/drafts/batch; saved drafts are kept when others fail
func (h *Handlers) SaveDrafts(c *gin.Context) {
	var req SaveDraftsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err)
		return
	}

	saved, err := h.deps.Drafts.SaveDrafts(c.Request.Context(), principal(c).Code, req.Entries)
	if err != nil && len(saved) == 0 {
		writeError(c, err)
		return
	}

	resp := SaveDraftsResponse{Saved: saved, Failed: joinedMessages(err)}
	status := http.StatusCreated
	if err != nil {
		status = http.StatusMultiStatus
	}
	c.JSON(status, Response{Success: err == nil, Data: resp})
}

// ListDrafts handles GET /api/ope/drafts?month=
func (h *Handlers) ListDrafts(c *gin.Context) {
	drafts, err := h.deps.Drafts.ListDrafts(c.Request.Context(), principal(c).Code, c.Query("month"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, drafts)
}

// UpdateDraft handles PUT /api/ope/drafts/:entry_id
func (h *Handlers) UpdateDraft(c *gin.Context) {
	var in service.DraftInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "body", err)
		return
	}

	entry, err := h.deps.Drafts.UpdateDraft(c.Request.Context(), principal(c).Code, c.Param("entry_id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, entry)
}

// DeleteDraft handles DELETE /api/ope/drafts/:entry_id
func (h *Handlers) DeleteDraft(c *gin.Context) {
	if err := h.deps.Drafts.DeleteDraft(c.Request.Context(), principal(c).Code, c.Param("entry_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SubmitFinal handles POST /api/ope/submit
func (h *Handlers) SubmitFinal(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err)
		return
	}

	result, err := h.deps.Submission.SubmitFinal(c.Request.Context(), principal(c).Code, req.PayrollMonth)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: result})
}

// GetApprovalStatus handles GET /api/ope/status/:employee_code
func (h *Handlers) GetApprovalStatus(c *gin.Context) {
	records, err := h.deps.Status.GetApprovalStatus(c.Request.Context(), principal(c).Code, c.Param("employee_code"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, records)
}

// GetEntryHistory handles GET /api/ope/history/:employee_code
func (h *Handlers) GetEntryHistory(c *gin.Context) {
	history, err := h.deps.Status.GetEntryHistory(c.Request.Context(), principal(c).Code, c.Param("employee_code"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, history)
}

// ApproveAtCurrentLevel handles POST /api/ope/approvals/:employee_code/approve
func (h *Handlers) ApproveAtCurrentLevel(c *gin.Context) {
	result, err := h.deps.Approval.ApproveAtCurrentLevel(c.Request.Context(), principal(c).Code, c.Param("employee_code"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, result)
}

// RejectAtCurrentLevel handles POST /api/ope/approvals/:employee_code/reject
func (h *Handlers) RejectAtCurrentLevel(c *gin.Context) {
	var req RejectRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.deps.Approval.RejectAtCurrentLevel(c.Request.Context(), principal(c).Code, c.Param("employee_code"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, result)
}

// ApproveSingleEntry handles POST /api/ope/entries/:entry_id/approve
func (h *Handlers) ApproveSingleEntry(c *gin.Context) {
	var req EntryActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err)
		return
	}

	entryID := c.Param("entry_id")
	if err := h.deps.Approval.ApproveSingleEntry(c.Request.Context(), principal(c).Code, req.EmployeeCode, entryID); err != nil {
		writeError(c, err)
		return
	}
	ok(c, gin.H{"entry_id": entryID, "status": entity.EntryStatusApproved})
}

// RejectSingleEntry handles POST /api/ope/entries/:entry_id/reject
func (h *Handlers) RejectSingleEntry(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err)
		return
	}

	entryID := c.Param("entry_id")
	if err := h.deps.Approval.RejectSingleEntry(c.Request.Context(), principal(c).Code, req.EmployeeCode, entryID, req.Reason); err != nil {
		writeError(c, err)
		return
	}
	ok(c, gin.H{"entry_id": entryID, "status": entity.EntryStatusRejected})
}

// EditEntryAmount handles PUT /api/ope/entries/:entry_id/amount
func (h *Handlers) EditEntryAmount(c *gin.Context) {
	var req EditAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err)
		return
	}

	result, err := h.deps.Amount.EditEntryAmount(c.Request.Context(), principal(c).Code, req.EmployeeCode, c.Param("entry_id"), req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, result)
}

// EditMonthTotal handles PUT /api/ope/months/total
func (h *Handlers) EditMonthTotal(c *gin.Context) {
	var req EditTotalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err)
		return
	}

	result, err := h.deps.Amount.EditMonthTotal(c.Request.Context(), principal(c).Code, req.EmployeeCode, req.PayrollMonth, req.Total)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, result)
}

// ListWorkQueue handles GET /api/ope/queue/:status
func (h *Handlers) ListWorkQueue(c *gin.Context) {
	items, err := h.deps.Queue.ListWorkQueue(c.Request.Context(), principal(c).Code, entity.QueueStatus(c.Param("status")))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, items)
}

// ExportWorkQueue handles GET /api/ope/queue/:status/export
func (h *Handlers) ExportWorkQueue(c *gin.Context) {
	status, valid := entity.ParseQueueStatus(c.Param("status"))
	if !valid {
		writeError(c, &errs.ValidationError{Field: "status", Value: c.Param("status"), Reason: "must be Pending, Approved or Rejected"})
		return
	}

	caller := principal(c).Code
	items, err := h.deps.Queue.ListWorkQueue(c.Request.Context(), caller, status)
	if err != nil {
		writeError(c, err)
		return
	}

	data, err := h.deps.Exporter.Export(status, items)
	if err != nil {
		h.logger.Error("Failed to export work queue", "error", err, "approver_code", caller)
		writeError(c, err)
		return
	}

	fileName := fmt.Sprintf("work-queue-%s-%s.xlsx", strings.ToLower(string(status)), caller)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, h.deps.Exporter.ContentType(), data)
}

// ListPendingApprovals handles GET /api/ope/pending
func (h *Handlers) ListPendingApprovals(c *gin.Context) {
	pending, err := h.deps.Queue.ListPendingApprovals(c.Request.Context(), principal(c).Code)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, pending)
}

// ImportDirectory handles POST /api/directory/import with a "file" workbook
func (h *Handlers) ImportDirectory(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file", err)
		return
	}

	f, err := header.Open()
	if err != nil {
		badRequest(c, "file", err)
		return
	}
	defer f.Close()

	result, err := h.deps.Directory.ImportWorkbook(c.Request.Context(), principal(c).Code, f)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, result)
}

// readAttachment returns the optional "attachment" file of a multipart draft
func (h *Handlers) readAttachment(c *gin.Context) (*service.Attachment, error) {
	header, err := c.FormFile("attachment")
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, &errs.ValidationError{Field: "attachment", Reason: err.Error()}
	}
	if h.maxAttachmentBytes > 0 && header.Size > h.maxAttachmentBytes {
		return nil, &errs.ValidationError{Field: "attachment", Value: header.Filename,
			Reason: fmt.Sprintf("exceeds %d bytes", h.maxAttachmentBytes)}
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	return &service.Attachment{FileName: header.Filename, Content: content}, nil
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func badRequest(c *gin.Context, field string, err error) {
	writeError(c, &errs.ValidationError{Field: field, Reason: err.Error()})
}

// bindOptionalJSON binds the body when one is sent
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "body", err)
		return false
	}
	return true
}
