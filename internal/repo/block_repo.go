// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the BlockRecord
// model.
//
// The repository follows a "thin" approach: it performs persistence and simple
// query composition, leaving business rules to the services package.
//
// Error semantics:
//   - A repeated block of the same (blocker, blocked) pair trips the composite
//     unique index and is returned as ErrDuplicate. The service layer treats
//     that as the documented idempotent no-op rather than a failure.
//   - On other DB errors (connectivity, constraints, etc.), the raw gorm
//     error is propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calmbridge/support-chat-backend/internal/domain"
)

// ErrDuplicate indicates that a row with the same unique key already exists.
var ErrDuplicate = errors.New("duplicate")

// CreateBlockRecord inserts a directional block of blockedID by blockerID.
// Returns ErrDuplicate when the pair is already blocked.
func CreateBlockRecord(ctx context.Context, db *gorm.DB, blockerID, blockedID int64) (*domain.BlockRecord, error) {
	rec := &domain.BlockRecord{
		ID:        uuid.NewString(),
		BlockerID: blockerID,
		BlockedID: blockedID,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// ListBlockedIDs returns the ids of every user blockerID has blocked. An
// empty result is a valid outcome, not an error.
func ListBlockedIDs(ctx context.Context, db *gorm.DB, blockerID int64) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).
		Model(&domain.BlockRecord{}).
		Where("blocker_id = ?", blockerID).
		Pluck("blocked_id", &ids).Error
	return ids, err
}

// CountBlockRecords returns how many users blockerID has blocked. Used for
// conditional-response fingerprints of the volunteer listing.
func CountBlockRecords(ctx context.Context, db *gorm.DB, blockerID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.BlockRecord{}).
		Where("blocker_id = ?", blockerID).
		Count(&total).Error
	return total, err
}

// isUniqueViolation detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}
