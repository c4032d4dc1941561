// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ChatReport
// model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calmbridge/support-chat-backend/internal/domain"
)

// CreateChatReport inserts a report filed by filedByID against chatID.
// Uniqueness of unresolved reports is a service-level rule; see
// HasUnresolvedReport.
func CreateChatReport(ctx context.Context, db *gorm.DB, chatID string, filedByID int64, report string) (*domain.ChatReport, error) {
	r := &domain.ChatReport{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		FiledByID: filedByID,
		Report:    report,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// HasUnresolvedReport reports whether filedByID already has an open report
// against chatID.
func HasUnresolvedReport(ctx context.Context, db *gorm.DB, chatID string, filedByID int64) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.ChatReport{}).
		Where("chat_id = ? AND filed_by_id = ? AND resolved = ?", chatID, filedByID, false).
		Count(&count).Error
	return count > 0, err
}
