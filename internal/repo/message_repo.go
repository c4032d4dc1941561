// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calmbridge/support-chat-backend/internal/domain"
)

// CreateMessage inserts a new message row. Callers run it inside the same
// transaction as TouchLastMessage so the chat's activity timestamp never
// drifts from the newest message.
func CreateMessage(ctx context.Context, db *gorm.DB, chatID string, senderID int64, content string, msgType domain.MessageType) (*domain.Message, error) {
	m := &domain.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		Type:      msgType,
		CreatedAt: time.Now().UTC(),
	}
	return m, db.WithContext(ctx).Create(m).Error
}

// ListMessages returns messages ordered deterministically (CreatedAt ASC, ID ASC).
func ListMessages(ctx context.Context, db *gorm.DB, chatID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).Where("chat_id = ?", chatID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error (as tests expect).
func CountMessages(ctx context.Context, db *gorm.DB, chatID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM messages WHERE chat_id = ?", chatID).Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice ordered (CreatedAt ASC, ID ASC).
func ListMessagesPage(ctx context.Context, db *gorm.DB, chatID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkMessagesSeen bulk-sets is_seen on every unseen message in the chat
// authored by senderID. It returns the number of rows flipped; zero rows is
// not an error, which makes the operation naturally idempotent.
func MarkMessagesSeen(ctx context.Context, db *gorm.DB, chatID string, senderID int64) (int64, error) {
	res := db.WithContext(ctx).Model(&domain.Message{}).
		Where("chat_id = ? AND sender_id = ? AND is_seen = ?", chatID, senderID, false).
		Update("is_seen", true)
	return res.RowsAffected, res.Error
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
