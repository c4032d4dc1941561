// Block HTTP handlers.
//
// This file exposes the block-registry endpoint:
//   - POST /blocks   (volunteer blocks a client out of a session)
//
// Blocking is one-directional feed filtering, not a ban: the blocked client
// can keep opening sessions, but this volunteer never sees them again. The
// named session returns to the unmatched pool as part of the same operation.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/calmbridge/support-chat-backend/internal/domain"
)

// PostBlockRequest is the JSON payload for creating a block.
type PostBlockRequest struct {
	// BlockedID is the user being blocked.
	BlockedID int64 `json:"blocked_id" binding:"required"`
	// SessionID is the session the block arises from; it is released back to
	// the pool.
	SessionID string `json:"session_id" binding:"required"`
}

// PostBlockResponse wraps the stored block record. Record is null when the
// block already existed.
type PostBlockResponse struct {
	Record *domain.BlockRecord `json:"record"`
}

// PostBlock handles POST /blocks. Repeating an existing block is a no-op that
// still returns 200, so clients can retry freely.
func (h *Handlers) PostBlock(c *gin.Context) {
	ctx := c.Request.Context()

	var req PostBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "blocked_id and session_id required")
		return
	}
	if _, err := uuid.Parse(req.SessionID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}

	rec, err := h.blockSvc.Block(ctx, caller(c), req.BlockedID, req.SessionID)
	if err != nil {
		failService(c, err, ErrCodeBlockFailed)
		return
	}
	ok(c, http.StatusOK, PostBlockResponse{Record: rec})
}
