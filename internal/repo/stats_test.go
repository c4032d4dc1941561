package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/calmbridge/support-chat-backend/internal/domain"
)

func newStatsDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("stats_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.Chat{}, &domain.Message{}, &domain.Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestSessionStats_RegularWindow(t *testing.T) {
	db := newStatsDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	since := now.Add(-6 * time.Hour)

	count, maxTS, err := SessionStats(ctx, db, 100, domain.ChatTypeRegular, since)
	if err != nil || count != 0 || maxTS != nil {
		t.Fatalf("empty: count=%d maxTS=%v err=%v", count, maxTS, err)
	}

	a, _ := CreateChat(ctx, db, 1, domain.ChatTypeRegular)
	b, _ := CreateChat(ctx, db, 2, domain.ChatTypeRegular)
	foreign, _ := CreateChat(ctx, db, 3, domain.ChatTypeRegular)
	stale, _ := CreateChat(ctx, db, 4, domain.ChatTypeRegular)
	_ = ClaimChat(ctx, db, b.ID, 100)
	_ = ClaimChat(ctx, db, foreign.ID, 200)

	latest := now.Add(time.Hour)
	if err := TouchLastMessage(ctx, db, a.ID, latest); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := TouchLastMessage(ctx, db, b.ID, now); err != nil {
		t.Fatalf("touch: %v", err)
	}
	// Unmatched but outside the window: not part of the listing, so not part
	// of the fingerprint either.
	if err := TouchLastMessage(ctx, db, stale.ID, now.Add(-7*time.Hour)); err != nil {
		t.Fatalf("touch: %v", err)
	}

	count, maxTS, err = SessionStats(ctx, db, 100, domain.ChatTypeRegular, since)
	if err != nil {
		t.Fatalf("SessionStats: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d; want 2 (own + unmatched, windowed)", count)
	}
	if maxTS == nil || !maxTS.Equal(latest) {
		t.Fatalf("maxTS = %v; want %v", maxTS, latest)
	}

	// A chat aging out of the window must move the fingerprint.
	if err := TouchLastMessage(ctx, db, b.ID, now.Add(-7*time.Hour)); err != nil {
		t.Fatalf("touch: %v", err)
	}
	count, _, err = SessionStats(ctx, db, 100, domain.ChatTypeRegular, since)
	if err != nil {
		t.Fatalf("SessionStats: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d; want 1 after aging out", count)
	}
}

func TestSessionStats_RoleplayCountsClientSide(t *testing.T) {
	db := newStatsDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	// Caller 9 is the client; another volunteer holds the chat. The roleplay
	// listing shows it, so the fingerprint must count it.
	rp, _ := CreateChat(ctx, db, 9, domain.ChatTypeRoleplay)
	_ = ClaimChat(ctx, db, rp.ID, 200)
	// Someone else's matched roleplay chat stays invisible.
	other, _ := CreateChat(ctx, db, 1, domain.ChatTypeRoleplay)
	_ = ClaimChat(ctx, db, other.ID, 300)

	count, _, err := SessionStats(ctx, db, 9, domain.ChatTypeRoleplay, now)
	if err != nil {
		t.Fatalf("SessionStats: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d; want 1 (client-side roleplay chat)", count)
	}

	// Activity in that chat must move the fingerprint.
	bump := now.Add(time.Hour)
	if err := TouchLastMessage(ctx, db, rp.ID, bump); err != nil {
		t.Fatalf("touch: %v", err)
	}
	count, maxTS, err := SessionStats(ctx, db, 9, domain.ChatTypeRoleplay, now)
	if err != nil {
		t.Fatalf("SessionStats: %v", err)
	}
	if count != 1 || maxTS == nil || !maxTS.Equal(bump) {
		t.Fatalf("fingerprint = (%d, %v); want (1, %v)", count, maxTS, bump)
	}

	// Roleplay carries no window: an ancient chat still counts.
	if err := TouchLastMessage(ctx, db, rp.ID, now.Add(-200*time.Hour)); err != nil {
		t.Fatalf("touch: %v", err)
	}
	count, _, err = SessionStats(ctx, db, 9, domain.ChatTypeRoleplay, now)
	if err != nil || count != 1 {
		t.Fatalf("count = %d err=%v; roleplay must ignore the window", count, err)
	}
}

func TestMessagesStats(t *testing.T) {
	db := newStatsDB(t)
	ctx := context.Background()

	count, maxTS, err := MessagesStats(ctx, db, "c1")
	if err != nil || count != 0 || maxTS != nil {
		t.Fatalf("empty: count=%d maxTS=%v err=%v", count, maxTS, err)
	}

	if _, err := CreateMessage(ctx, db, "c1", 1, "a", domain.MessageClientToVolunteer); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	second, err := CreateMessage(ctx, db, "c1", 2, "b", domain.MessageVolunteerToClient)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	count, maxTS, err = MessagesStats(ctx, db, "c1")
	if err != nil {
		t.Fatalf("MessagesStats: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d; want 2", count)
	}
	if maxTS == nil || !maxTS.Equal(second.CreatedAt) {
		t.Fatalf("maxTS = %v; want %v", maxTS, second.CreatedAt)
	}
}

func TestIdempotency_RoundTripAndExpiry(t *testing.T) {
	db := newStatsDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec, err := CreateIdempotency(ctx, db, "7", "c1", "k1", "m1", 201, time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.MessageID != "m1" || rec.Status != 201 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "7", "c1", "k1", now)
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if got.MessageID != "m1" {
		t.Fatalf("round-trip mismatch: %+v", got)
	}

	// Same key after expiry is gone.
	if _, err := GetIdempotency(ctx, db, "7", "c1", "k1", now.Add(2*time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired: want ErrNotFound, got %v", err)
	}

	// Re-inserting the live key trips the unique index.
	if _, err := CreateIdempotency(ctx, db, "7", "c1", "k1", "m2", 201, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
}
