// Package services – BlockService
//
// This file implements the block registry: a one-directional relation created
// when a volunteer rejects a client out of a specific chat. Blocking is a
// feed-visibility mechanism, not a ban — the blocked client can keep opening
// new chats, but this volunteer never sees them again.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/calmbridge/support-chat-backend/internal/domain"
	"github.com/calmbridge/support-chat-backend/internal/repo"
)

// BlockService implements the use-cases around block records.
type BlockService struct {
	// DB is the database handle used for all block operations.
	DB *gorm.DB
}

// Block records that the calling volunteer has blocked blockedID, and clears
// the volunteer assignment on chatID so the chat returns to the unmatched
// pool for other volunteers.
//
// Semantics:
//   - Only volunteers may block; anyone else gets ErrUnauthorized.
//   - Blocking the same user twice is a documented no-op: the call returns
//     (nil, nil) rather than an error. The composite unique index backs this
//     up even when two block calls race.
//   - The record insert and the chat release run in one transaction.
func (s *BlockService) Block(ctx context.Context, caller *Caller, blockedID int64, chatID string) (*domain.BlockRecord, error) {
	tr := otel.Tracer("services/BlockService")
	ctx, span := tr.Start(ctx, "Block",
		trace.WithAttributes(
			attribute.Int64("blocked.id", blockedID),
			attribute.String("chat.id", chatID),
		),
	)
	defer span.End()

	if !caller.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if !caller.IsVolunteer() {
		return nil, ErrUnauthorized
	}
	if blockedID <= 0 || blockedID == caller.ID {
		return nil, ErrInvalidBlockTarget
	}
	if chatID == "" {
		return nil, ErrMissingChatID
	}

	var rec *domain.BlockRecord
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := repo.CreateBlockRecord(ctx, tx, caller.ID, blockedID)
		if err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				// Already blocked: leave rec nil and change nothing.
				return nil
			}
			return err
		}
		rec = r
		_, err = repo.ReleaseChats(ctx, tx, []string{chatID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// BlockedIDs returns the ids of every user the given user has blocked. Used
// by listing queries and subscription predicates for feed filtering only,
// never for authorization.
func (s *BlockService) BlockedIDs(ctx context.Context, userID int64) ([]int64, error) {
	return repo.ListBlockedIDs(ctx, s.DB, userID)
}

// IsBlocked reports whether subjectID appears in blockedIDs.
func IsBlocked(subjectID int64, blockedIDs []int64) bool {
	for _, id := range blockedIDs {
		if id == subjectID {
			return true
		}
	}
	return false
}
