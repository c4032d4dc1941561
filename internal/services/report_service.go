// Package services – ReportService
//
// This file implements chat reports: a participant files a report against a
// chat for moderator review. The service enforces that a filer holds at most
// one unresolved report per chat; the check and the insert are atomic so
// concurrent submissions cannot slip a duplicate through.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/calmbridge/support-chat-backend/internal/domain"
	"github.com/calmbridge/support-chat-backend/internal/repo"
)

// ReportService implements the use-cases around chat reports.
type ReportService struct {
	// DB is the database handle used for all report operations.
	DB *gorm.DB
}

// File records a report against chatID on behalf of the caller.
//
// Semantics and validation:
//   - The caller must be authenticated; otherwise ErrUnauthenticated.
//   - chatID and report body are required; otherwise ErrMissingChatID or
//     ErrEmptyReport.
//   - chatID must exist; otherwise ErrChatNotFound.
//   - While the caller has an unresolved report on this chat, filing again
//     yields ErrDuplicateReport.
func (s *ReportService) File(ctx context.Context, caller *Caller, chatID, report string) (*domain.ChatReport, error) {
	if !caller.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if chatID == "" {
		return nil, ErrMissingChatID
	}
	report = strings.TrimSpace(report)
	if report == "" {
		return nil, ErrEmptyReport
	}

	var rec *domain.ChatReport
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetChatBare(ctx, tx, chatID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrChatNotFound
			}
			return err
		}
		open, err := repo.HasUnresolvedReport(ctx, tx, chatID, caller.ID)
		if err != nil {
			return err
		}
		if open {
			return ErrDuplicateReport
		}
		r, err := repo.CreateChatReport(ctx, tx, chatID, caller.ID, report)
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
