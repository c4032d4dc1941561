// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chat model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a chat is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - ClaimChat returns ErrAlreadyClaimed when the conditional update matched
//     no rows because another volunteer holds the chat. This is the single
//     point of write contention in the system, so the check and the write are
//     one statement (UPDATE ... WHERE volunteer_id IS NULL) rather than a
//     read-then-write.
//   - On other DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calmbridge/support-chat-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// withMessagesDesc preloads the chat's messages newest-first, the order used
// by listing queries and fan-out payloads.
func withMessagesDesc(db *gorm.DB) *gorm.DB {
	return db.Preload("Messages", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("created_at DESC, id DESC")
	})
}

// CreateChat inserts a new unmatched Chat for clientID with the given type.
// The chat ID is a randomly generated UUID, and LastMessageAt starts equal to
// CreatedAt so a freshly created chat counts as active.
func CreateChat(ctx context.Context, db *gorm.DB, clientID int64, chatType domain.ChatType) (*domain.Chat, error) {
	now := time.Now().UTC()
	c := &domain.Chat{
		ID:            uuid.NewString(),
		ClientID:      clientID,
		ChatType:      chatType,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetChat fetches a single chat by ID with its messages preloaded
// newest-first. If the record does not exist, it returns ErrNotFound.
func GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	var c domain.Chat
	err := withMessagesDesc(db.WithContext(ctx)).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetChatBare fetches a chat without its message collection. Useful for
// participant and state checks that do not need the conversation body.
func GetChatBare(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	var c domain.Chat
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChatsByIDs returns the chats matching ids with messages preloaded,
// ordered by last activity descending. Unknown ids are silently skipped.
func ListChatsByIDs(ctx context.Context, db *gorm.DB, ids []string) ([]domain.Chat, error) {
	if len(ids) == 0 {
		return []domain.Chat{}, nil
	}
	var out []domain.Chat
	err := withMessagesDesc(db.WithContext(ctx)).
		Where("id IN ?", ids).
		Order("last_message_at DESC").
		Find(&out).Error
	return out, err
}

// ListParticipantChats returns the subset of ids where userID sits on either
// side of the chat, with messages preloaded. Chats the user is not part of
// are silently skipped.
func ListParticipantChats(ctx context.Context, db *gorm.DB, ids []string, userID int64) ([]domain.Chat, error) {
	if len(ids) == 0 {
		return []domain.Chat{}, nil
	}
	var out []domain.Chat
	err := withMessagesDesc(db.WithContext(ctx)).
		Where("id IN ?", ids).
		Where("volunteer_id = ? OR client_id = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&out).Error
	return out, err
}

// FindLatestChat returns the client's most recent chat of the given type,
// judged by last_message_at, or ErrNotFound when the client has none.
func FindLatestChat(ctx context.Context, db *gorm.DB, clientID int64, chatType domain.ChatType) (*domain.Chat, error) {
	var c domain.Chat
	err := withMessagesDesc(db.WithContext(ctx)).
		Where("client_id = ? AND chat_type = ?", clientID, chatType).
		Order("last_message_at DESC").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListRegularChats returns regular chats active since the given cutoff that
// are either held by volunteerID or still unmatched, excluding chats whose
// client appears in blockedIDs. Ordered by last activity descending.
func ListRegularChats(ctx context.Context, db *gorm.DB, volunteerID int64, since time.Time, blockedIDs []int64) ([]domain.Chat, error) {
	q := withMessagesDesc(db.WithContext(ctx)).
		Where("chat_type = ?", domain.ChatTypeRegular).
		Where("last_message_at > ?", since).
		Where("volunteer_id = ? OR volunteer_id IS NULL", volunteerID)
	if len(blockedIDs) > 0 {
		q = q.Where("client_id NOT IN ?", blockedIDs)
	}
	var out []domain.Chat
	err := q.Order("last_message_at DESC").Find(&out).Error
	return out, err
}

// ListRoleplayChats returns roleplay chats where userID participates on
// either side, plus unmatched ones. Roleplay listing carries no activity
// window: stale practice sessions stay visible.
func ListRoleplayChats(ctx context.Context, db *gorm.DB, userID int64) ([]domain.Chat, error) {
	var out []domain.Chat
	err := withMessagesDesc(db.WithContext(ctx)).
		Where("chat_type = ?", domain.ChatTypeRoleplay).
		Where("volunteer_id = ? OR volunteer_id IS NULL OR client_id = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&out).Error
	return out, err
}

// ErrAlreadyClaimed is returned by ClaimChat when the chat exists but another
// volunteer already holds it.
var ErrAlreadyClaimed = errors.New("chat already claimed")

// ClaimChat atomically assigns volunteerID to an unmatched chat. The claim is
// a single conditional UPDATE; zero rows affected means either the chat is
// gone (ErrNotFound) or somebody else won the race (ErrAlreadyClaimed).
func ClaimChat(ctx context.Context, db *gorm.DB, chatID string, volunteerID int64) error {
	res := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ? AND volunteer_id IS NULL", chatID).
		Update("volunteer_id", volunteerID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := db.WithContext(ctx).Model(&domain.Chat{}).Where("id = ?", chatID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrAlreadyClaimed
	}
	return nil
}

// ReleaseChats clears the volunteer assignment on the given chats, returning
// them to the unmatched pool. It returns the number of chats updated.
func ReleaseChats(ctx context.Context, db *gorm.DB, chatIDs []string) (int64, error) {
	if len(chatIDs) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id IN ?", chatIDs).
		Update("volunteer_id", nil)
	return res.RowsAffected, res.Error
}

// TouchLastMessage sets the chat's last_message_at to ts. It is called in the
// same transaction as the message insert that produced ts, keeping the
// denormalized column consistent with the newest message.
func TouchLastMessage(ctx context.Context, db *gorm.DB, chatID string, ts time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ?", chatID).
		Update("last_message_at", ts)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
