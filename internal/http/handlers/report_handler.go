// Report HTTP handlers.
//
// This file exposes the report endpoint:
//   - POST /sessions/{id}/report   (file a report for moderator review)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/calmbridge/support-chat-backend/internal/domain"
)

// PostReportRequest is the JSON payload for filing a report.
type PostReportRequest struct {
	// Report is the free-text description of what happened.
	Report string `json:"report" binding:"required,min=1"`
}

// PostReportResponse wraps the stored report.
type PostReportResponse struct {
	Report *domain.ChatReport `json:"report"`
}

// PostReport handles POST /sessions/{id}/report. Filing twice while an
// earlier report is unresolved yields 409.
func (h *Handlers) PostReport(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := c.Param("id")

	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}

	var req PostReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "report required")
		return
	}

	rec, err := h.reportSvc.File(ctx, caller(c), chatID, req.Report)
	if err != nil {
		failService(c, err, ErrCodeReportFailed)
		return
	}
	ok(c, http.StatusCreated, PostReportResponse{Report: rec})
}
