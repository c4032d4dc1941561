// Message HTTP handlers.
//
// This file exposes REST endpoints for messages within a session:
//   - POST /sessions/{id}/messages   (send a message)
//   - GET  /sessions/{id}/messages   (list paginated history)
//   - POST /sessions/{id}/seen       (mark counterpart messages seen)
//
// Handlers are transport-thin: they validate and normalize input (line
// endings, length caps), delegate to MessageService, and implement
// conditional responses (ETag) and idempotency semantics.
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (caller, session, key), the handler returns the recorded
// message and sets `Idempotency-Replayed: true` instead of sending again.
package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/calmbridge/support-chat-backend/internal/domain"
	"github.com/calmbridge/support-chat-backend/internal/http/middleware"
	"github.com/calmbridge/support-chat-backend/internal/repo"
	"github.com/calmbridge/support-chat-backend/internal/services"
)

//
// DTOs
//

// PostMessageRequest is the JSON payload for sending a message.
//
// Content is normalized by the handler (line endings, excessive blank lines)
// before reaching the service layer, which enforces the rune-count cap.
type PostMessageRequest struct {
	// Content is the message body. It must be non-empty.
	Content string `json:"content" binding:"required,min=1"`
	// Type is the message direction: CLIENT_TO_VOLUNTEER or VOLUNTEER_TO_CLIENT.
	Type string `json:"type" binding:"required"`
}

// PostMessageResponse wraps a newly persisted message.
type PostMessageResponse struct {
	Message *domain.Message `json:"message"`
}

// ListMessagesResponse contains a page of session messages and pagination
// metadata.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// MarkSeenResponse echoes the session whose messages were marked seen.
type MarkSeenResponse struct {
	SessionID string `json:"session_id"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
// CRLF/CR become LF, runs of 3+ LFs collapse to two, and surrounding
// whitespace is trimmed.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// maxContentRunes inspects the concrete MessageService for a configured
// length limit, falling back to a conservative default.
func maxContentRunes(msgSvc MessageService) int {
	const fallback = 4000
	if ms, ok := msgSvc.(*services.MessageService); ok {
		if ms.MaxContentRunes > 0 {
			return ms.MaxContentRunes
		}
	}
	return fallback
}

//
// Handlers
//

// PostMessage handles POST /sessions/{id}/messages: persist a message in the
// session and announce it to subscribers. Supports safe retries via the
// Idempotency-Key header.
func (h *Handlers) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := c.Param("id")

	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content and type required")
		return
	}

	// Sanitize + early size cap to fail fast at the edge.
	content := sanitizeContent(req.Content)
	maxRunes := maxContentRunes(h.msgSvc)
	if maxRunes > 0 && utf8.RuneCountInString(content) > maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		return
	}
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	msgType := domain.MessageType(req.Type)
	if !msgType.Valid() {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "type must be CLIENT_TO_VOLUNTEER or VOLUNTEER_TO_CLIENT")
		return
	}

	cl := caller(c)
	callerKey := strconv.FormatInt(cl.ID, 10)

	// Idempotency (replay path) – read validated key if present.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" && h.DB != nil {
		if rec, err := repo.GetIdempotency(ctx, h.DB, callerKey, chatID, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if prev, err2 := repo.GetMessage(ctx, h.DB, rec.MessageID); err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, PostMessageResponse{Message: prev})
				return
			}
		}
	}

	m, err := h.msgSvc.Send(ctx, cl, chatID, content, msgType)
	if err != nil {
		failService(c, err, ErrCodeSendFailed)
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && h.DB != nil {
		_, _ = repo.CreateIdempotency(ctx, h.DB, callerKey, chatID, idemKey, m.ID, http.StatusCreated, 24*time.Hour)
	}

	ok(c, http.StatusCreated, PostMessageResponse{Message: m})
}

// ListMessages handles GET /sessions/{id}/messages: paginated chronological
// history, participants only, with a weak ETag for cheap polling.
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := c.Param("id")

	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}

	// ETag pre-check (best effort).
	if h.DB != nil {
		count, maxTS, err := repo.MessagesStats(ctx, h.DB, chatID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"messages:%s:%d:%d"`, chatID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	page, pageSize := clampPagination(c)

	items, total, err := h.msgSvc.History(ctx, caller(c), chatID, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []domain.Message{}
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// MarkSeen handles POST /sessions/{id}/seen: flag the counterpart's messages
// in the session as seen. Safe to repeat.
func (h *Handlers) MarkSeen(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := c.Param("id")

	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}

	id, err := h.msgSvc.MarkSeen(ctx, caller(c), chatID)
	if err != nil {
		failService(c, err, ErrCodeSendFailed)
		return
	}
	ok(c, http.StatusOK, MarkSeenResponse{SessionID: id})
}
