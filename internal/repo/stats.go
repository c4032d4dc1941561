// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/calmbridge/support-chat-backend/internal/domain"
)

// SessionStats returns aggregate metadata for the chats a caller's listing
// draws from: the number of chats of the given type the listing predicate
// selects for userID, and the greatest last_message_at among them.
//
// The predicate mirrors ListRegularChats / ListRoleplayChats exactly, window
// included: a chat aging out of the regular pool, or activity in a roleplay
// chat where the caller is the client, must change the fingerprint or a
// conditional request would be answered 304 against changed content. `since`
// bounds the regular window and is ignored for roleplay, which carries none.
//
// Only the block filter is left out; the companion block-record count
// (CountBlockRecords) folds blocking changes into the same fingerprint.
//
// Return values:
//   - count:     chats feeding the listing for userID
//   - maxTS:     pointer to the greatest last_message_at, or nil if no rows
//   - err:       database error, if any
func SessionStats(ctx context.Context, db *gorm.DB, userID int64, chatType domain.ChatType, since time.Time) (count int64, maxTS *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Chat{}).
		Where("chat_type = ?", chatType)
	if chatType == domain.ChatTypeRoleplay {
		q = q.Where("volunteer_id = ? OR volunteer_id IS NULL OR client_id = ?", userID, userID)
	} else {
		q = q.Where("last_message_at > ?", since).
			Where("volunteer_id = ? OR volunteer_id IS NULL", userID)
	}

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest last_message_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		LastMessageAt time.Time
	}
	if err = q.Select("last_message_at").Order("last_message_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.LastMessageAt, nil
}

// MessagesStats returns aggregate metadata for messages within a given chat:
// the total number of rows and the maximum CreatedAt timestamp among them.
// Used for conditional responses on the message history endpoint.
func MessagesStats(ctx context.Context, db *gorm.DB, chatID string) (count int64, maxCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("chat_id = ?", chatID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
