// Package handlers defines HTTP-layer error codes used across all API
// endpoints, plus the single mapping from service sentinel errors to HTTP
// responses.
//
// Conventions:
//   - Codes are lowercase snake_case and stable across releases.
//   - Generic codes mirror common HTTP status semantics; domain-specific codes
//     are reserved for business errors a status alone cannot convey.
//   - Every error response carries both an HTTP status and one of these codes.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/calmbridge/support-chat-backend/internal/services"
)

const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeUnauthenticated = "unauthenticated"
	ErrCodeForbidden       = "forbidden"
	ErrCodeNotFound        = "not_found"
	ErrCodeConflict        = "conflict"
	ErrCodeRateLimited     = "too_many_requests"
	ErrCodeInternal        = "internal_error"

	// Domain-specific:
	ErrCodeSessionFailed    = "session_failed"
	ErrCodeSendFailed       = "send_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeBlockFailed      = "block_failed"
	ErrCodeReportFailed     = "report_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// failService translates a service-layer error into an HTTP error response.
// Unrecognized errors become a 500 carrying fallbackCode.
func failService(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthenticated, "not logged in")
	case errors.Is(err, services.ErrUnauthorized):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not allowed")
	case errors.Is(err, services.ErrChatNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
	case errors.Is(err, services.ErrChatAlreadyMatched):
		fail(c, http.StatusConflict, ErrCodeConflict, "session already accepted by another volunteer")
	case errors.Is(err, services.ErrDuplicateReport):
		fail(c, http.StatusConflict, ErrCodeConflict, "an unresolved report already exists for this session")
	case errors.Is(err, services.ErrInvalidChatType),
		errors.Is(err, services.ErrMissingChatID),
		errors.Is(err, services.ErrMissingChatIDs),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrMessageTooLong),
		errors.Is(err, services.ErrInvalidMessageType),
		errors.Is(err, services.ErrInvalidBlockTarget),
		errors.Is(err, services.ErrEmptyReport):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}
