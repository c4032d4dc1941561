// Session HTTP handlers.
//
// This file exposes REST endpoints for the chat-session lifecycle:
//   - POST /sessions               (create-or-resume the caller's session)
//   - GET  /sessions/active        (peek at the caller's live session)
//   - GET  /sessions               (volunteer listing, ETag support)
//   - POST /sessions/{id}/accept   (volunteer claims an unmatched session)
//   - POST /sessions/signoff       (volunteer releases sessions)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calmbridge/support-chat-backend/internal/domain"
	"github.com/calmbridge/support-chat-backend/internal/http/middleware"
	"github.com/calmbridge/support-chat-backend/internal/pubsub"
	"github.com/calmbridge/support-chat-backend/internal/repo"
	"github.com/calmbridge/support-chat-backend/internal/services"
	"github.com/calmbridge/support-chat-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// SessionService defines the session lifecycle operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context.
type SessionService interface {
	// GetOrCreate returns the caller's live session or creates a fresh one.
	GetOrCreate(ctx context.Context, caller *services.Caller, chatType domain.ChatType) (*domain.Chat, error)
	// ActiveSession returns the caller's live session without creating one.
	ActiveSession(ctx context.Context, caller *services.Caller, chatType domain.ChatType) (*domain.Chat, error)
	// List returns the sessions visible to a volunteer.
	List(ctx context.Context, caller *services.Caller, chatType domain.ChatType) ([]domain.Chat, error)
	// Accept claims an unmatched session for the calling volunteer.
	Accept(ctx context.Context, caller *services.Caller, chatID string) (*domain.Chat, error)
	// SignOff releases the caller's sessions back to the unmatched pool.
	SignOff(ctx context.Context, caller *services.Caller, chatIDs []string) error
}

// MessageService defines message operations consumed by HTTP handlers.
type MessageService interface {
	// Send persists a message and bumps the session's activity timestamp.
	Send(ctx context.Context, caller *services.Caller, chatID, content string, msgType domain.MessageType) (*domain.Message, error)
	// MarkSeen flags the counterpart's messages in a session as seen.
	MarkSeen(ctx context.Context, caller *services.Caller, chatID string) (string, error)
	// History returns a page of a session's messages and the total count.
	History(ctx context.Context, caller *services.Caller, chatID string, page, pageSize int) ([]domain.Message, int64, error)
}

// BlockService defines block-registry operations consumed by HTTP handlers.
type BlockService interface {
	// Block records a block and releases the named session.
	Block(ctx context.Context, caller *services.Caller, blockedID int64, chatID string) (*domain.BlockRecord, error)
	// BlockedIDs returns the ids the given user has blocked.
	BlockedIDs(ctx context.Context, userID int64) ([]int64, error)
}

// ReportService defines report-filing operations consumed by HTTP handlers.
type ReportService interface {
	// File records a report against a session on behalf of the caller.
	File(ctx context.Context, caller *services.Caller, chatID, report string) (*domain.ChatReport, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for sessions, messages, blocks, reports,
// and real-time subscriptions. Service dependencies stay behind interfaces;
// DB is used only for conditional-response fingerprints and idempotency
// records, and Broker feeds the WebSocket streams.
type Handlers struct {
	sessionSvc SessionService
	msgSvc     MessageService
	blockSvc   BlockService
	reportSvc  ReportService

	DB     *gorm.DB
	Broker *pubsub.Broker
}

// New constructs a Handlers instance bound to the given services.
func New(sessionSvc SessionService, msgSvc MessageService, blockSvc BlockService, reportSvc ReportService, db *gorm.DB, broker *pubsub.Broker) *Handlers {
	return &Handlers{
		sessionSvc: sessionSvc,
		msgSvc:     msgSvc,
		blockSvc:   blockSvc,
		reportSvc:  reportSvc,
		DB:         db,
		Broker:     broker,
	}
}

// caller returns the authenticated caller attached by the auth middleware.
func caller(c *gin.Context) *services.Caller {
	return middleware.CallerFrom(c)
}

//
// DTOs
//

// CreateSessionRequest is the JSON payload for create-or-resume.
type CreateSessionRequest struct {
	// ChatType selects the conversation mode: "regular" or "roleplay".
	ChatType string `json:"chat_type" binding:"required"`
}

// SessionResponse wraps a single session.
type SessionResponse struct {
	Session *domain.Chat `json:"session"`
}

// ListSessionsResponse wraps the sessions visible to the caller.
type ListSessionsResponse struct {
	Sessions []domain.Chat `json:"sessions"`
}

// SignOffRequest names the sessions a volunteer wants to release.
type SignOffRequest struct {
	SessionIDs []string `json:"session_ids" binding:"required,min=1"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

//
// Helpers
//

// chatTypeParam reads and validates a chat type from source (body value or
// query parameter), defaulting to regular when empty.
func chatTypeParam(raw string) (domain.ChatType, bool) {
	if raw == "" {
		return domain.ChatTypeRegular, true
	}
	t := domain.ChatType(raw)
	return t, t.Valid()
}

// stalenessWindow reports the activity window configured on the concrete
// session service, falling back to the default when the handler was built
// over a different implementation.
func stalenessWindow(svc SessionService) time.Duration {
	if s, ok := svc.(*services.SessionService); ok && s.Staleness > 0 {
		return s.Staleness
	}
	return services.DefaultStaleness
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// CreateSession handles POST /sessions: create-or-resume the caller's session
// of the requested type. Repeated calls inside the activity window return the
// same session.
func (h *Handlers) CreateSession(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat_type required")
		return
	}
	chatType, valid := chatTypeParam(req.ChatType)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat_type must be regular or roleplay")
		return
	}

	chat, err := h.sessionSvc.GetOrCreate(ctx, caller(c), chatType)
	if err != nil {
		failService(c, err, ErrCodeSessionFailed)
		return
	}
	ok(c, http.StatusOK, SessionResponse{Session: chat})
}

// GetActiveSession handles GET /sessions/active: return the caller's live
// session of the requested type, or 204 when there is none. It never creates.
func (h *Handlers) GetActiveSession(c *gin.Context) {
	ctx := c.Request.Context()

	chatType, valid := chatTypeParam(c.Query("chat_type"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat_type must be regular or roleplay")
		return
	}

	chat, err := h.sessionSvc.ActiveSession(ctx, caller(c), chatType)
	if err != nil {
		failService(c, err, ErrCodeSessionFailed)
		return
	}
	if chat == nil {
		noContent(c)
		return
	}
	ok(c, http.StatusOK, SessionResponse{Session: chat})
}

// ListSessions handles GET /sessions: the volunteer's view of the pool.
//
// The response carries a weak ETag derived from the pool's row count, latest
// activity, and the caller's block-record count, so polling clients can skip
// unchanged payloads with If-None-Match.
func (h *Handlers) ListSessions(c *gin.Context) {
	ctx := c.Request.Context()

	chatType, valid := chatTypeParam(c.Query("chat_type"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat_type must be regular or roleplay")
		return
	}

	// ETag pre-check (best effort).
	if h.DB != nil {
		if cl := caller(c); cl != nil {
			since := time.Now().UTC().Add(-stalenessWindow(h.sessionSvc))
			count, maxTS, err := repo.SessionStats(ctx, h.DB, cl.ID, chatType, since)
			if err == nil {
				blocks, berr := repo.CountBlockRecords(ctx, h.DB, cl.ID)
				if berr == nil {
					var ts int64
					if maxTS != nil {
						ts = maxTS.Unix()
					}
					etag := fmt.Sprintf(`W/"sessions:%s:%d:%d:%d"`, chatType, count, ts, blocks)
					c.Header("ETag", etag)
					if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
						c.Status(http.StatusNotModified)
						return
					}
				}
			}
		}
	}

	chats, err := h.sessionSvc.List(ctx, caller(c), chatType)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	if chats == nil {
		chats = []domain.Chat{}
	}
	ok(c, http.StatusOK, ListSessionsResponse{Sessions: chats})
}

// AcceptSession handles POST /sessions/{id}/accept: the calling volunteer
// claims an unmatched session. Losing a claim race yields 409.
func (h *Handlers) AcceptSession(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := c.Param("id")

	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}

	chat, err := h.sessionSvc.Accept(ctx, caller(c), chatID)
	if err != nil {
		failService(c, err, ErrCodeSessionFailed)
		return
	}
	ok(c, http.StatusOK, SessionResponse{Session: chat})
}

// SignOff handles POST /sessions/signoff: release the named sessions back to
// the unmatched pool. Roleplay sessions in the list are skipped server-side.
func (h *Handlers) SignOff(c *gin.Context) {
	ctx := c.Request.Context()

	var req SignOffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session_ids required")
		return
	}

	if err := h.sessionSvc.SignOff(ctx, caller(c), req.SessionIDs); err != nil {
		failService(c, err, ErrCodeSessionFailed)
		return
	}
	noContent(c)
}
