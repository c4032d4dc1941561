// Package services – MessageService
//
// This file implements MessageService, which owns message persistence within
// a chat. Sending a message and bumping the parent chat's last_message_at is
// one transaction: the denormalized activity timestamp is a strict
// post-condition of the insert, not a best-effort follow-up. Mark-seen flips
// the counterpart's unseen messages in bulk and is idempotent by design.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// chat and user identifiers but never message content.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/calmbridge/support-chat-backend/internal/domain"
	"github.com/calmbridge/support-chat-backend/internal/pubsub"
	"github.com/calmbridge/support-chat-backend/internal/repo"
)

// MessageService coordinates message persistence, read receipts, and history.
type MessageService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Bus receives message.created events.
	Bus EventBus

	// MaxContentRunes caps message length by rune count when > 0.
	MaxContentRunes int
}

// Send persists a message in chatID on behalf of the caller and updates the
// chat's last_message_at to the message's CreatedAt inside the same
// transaction. The persisted message is announced on the message.created
// stream after commit.
func (s *MessageService) Send(ctx context.Context, caller *Caller, chatID, content string, msgType domain.MessageType) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(attribute.String("chat.id", chatID)),
	)
	defer span.End()

	if !caller.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if chatID == "" {
		return nil, ErrMissingChatID
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, ErrMessageTooLong
	}
	if !msgType.Valid() {
		return nil, ErrInvalidMessageType
	}

	var msg *domain.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetChatBare(ctx, tx, chatID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrChatNotFound
			}
			return err
		}
		m, err := repo.CreateMessage(ctx, tx, chatID, caller.ID, content, msgType)
		if err != nil {
			return err
		}
		msg = m
		return repo.TouchLastMessage(ctx, tx, chatID, m.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	s.Bus.Publish(ctx, pubsub.TopicMessageCreated, msg)
	return msg, nil
}

// MarkSeen flags every unseen message authored by the caller's counterpart in
// chatID as seen, and returns the chat id. The caller must be a participant.
// A chat with no unseen counterpart messages (including an unmatched chat
// viewed by its client) is a no-op, which makes repeated calls harmless.
func (s *MessageService) MarkSeen(ctx context.Context, caller *Caller, chatID string) (string, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "MarkSeen",
		trace.WithAttributes(attribute.String("chat.id", chatID)),
	)
	defer span.End()

	if !caller.Authenticated() {
		return "", ErrUnauthenticated
	}
	if chatID == "" {
		return "", ErrMissingChatID
	}

	chat, err := repo.GetChatBare(ctx, s.DB, chatID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrChatNotFound
		}
		return "", err
	}
	if !chat.IsParticipant(caller.ID) {
		return "", ErrUnauthorized
	}

	// The viewer has seen the other party's messages, so that party is the
	// sender whose rows get flipped.
	var counterpart *int64
	if chat.ClientID == caller.ID {
		counterpart = chat.VolunteerID
	} else {
		counterpart = &chat.ClientID
	}
	if counterpart == nil {
		// Unmatched chat viewed by its client: nothing to mark.
		return chatID, nil
	}

	if _, err := repo.MarkMessagesSeen(ctx, s.DB, chatID, *counterpart); err != nil {
		return "", err
	}
	return chatID, nil
}

// History returns a page of the chat's messages in chronological order along
// with the total count. Only participants may read the conversation.
func (s *MessageService) History(ctx context.Context, caller *Caller, chatID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if !caller.Authenticated() {
		return nil, 0, ErrUnauthenticated
	}
	if chatID == "" {
		return nil, 0, ErrMissingChatID
	}

	chat, err := repo.GetChatBare(ctx, s.DB, chatID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, 0, ErrChatNotFound
		}
		return nil, 0, err
	}
	if !chat.IsParticipant(caller.ID) {
		return nil, 0, ErrUnauthorized
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountMessages(ctx, s.DB, chatID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, chatID, offset, pageSize)
	return items, total, err
}
