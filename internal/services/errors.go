// Package services defines the business logic for session matching, messages,
// blocking, and chat reports. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

// Identity errors.
var (
	// ErrUnauthenticated indicates that no valid caller identity is present.
	// Banned and unapproved accounts are treated the same as no identity.
	ErrUnauthenticated = errors.New("user is not logged in")

	// ErrUnauthorized indicates the caller is known but lacks the role or
	// ownership required for the operation.
	ErrUnauthorized = errors.New("not allowed")
)

// Session errors.
var (
	// ErrInvalidChatType is returned when a chat type outside
	// {regular, roleplay} is requested.
	ErrInvalidChatType = errors.New("invalid chat type")

	// ErrMissingChatID is returned when an operation requires a chat id and
	// none was provided.
	ErrMissingChatID = errors.New("missing chat id")

	// ErrMissingChatIDs is returned when sign-off is called with an empty
	// chat id list.
	ErrMissingChatIDs = errors.New("missing chat id(s)")

	// ErrChatNotFound indicates that the referenced chat does not exist.
	ErrChatNotFound = errors.New("chat not found")

	// ErrChatAlreadyMatched indicates the optimistic claim lost: another
	// volunteer accepted the chat first. Callers should re-poll the listing
	// rather than retry blindly.
	ErrChatAlreadyMatched = errors.New("chat already accepted by another volunteer")
)

// Message errors.
var (
	// ErrEmptyMessage is returned when a send request carries no content.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned when content exceeds the configured
	// maximum length.
	ErrMessageTooLong = errors.New("message too long")

	// ErrInvalidMessageType is returned when the message direction is outside
	// the known set.
	ErrInvalidMessageType = errors.New("invalid message type")
)

// Block errors.
var (
	// ErrInvalidBlockTarget is returned when the block target id is malformed
	// or refers to the caller themself.
	ErrInvalidBlockTarget = errors.New("invalid user to block")
)

// Report errors.
var (
	// ErrEmptyReport is returned when a chat report carries no body.
	ErrEmptyReport = errors.New("report is empty")

	// ErrDuplicateReport is returned while an unresolved report by the same
	// filer already exists for the chat.
	ErrDuplicateReport = errors.New("an unresolved report for this chat already exists")
)
