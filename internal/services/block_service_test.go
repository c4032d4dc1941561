package services

import (
	"context"
	"errors"
	"testing"

	"github.com/calmbridge/support-chat-backend/internal/domain"
	"github.com/calmbridge/support-chat-backend/internal/repo"
)

func TestBlock_CreatesRecordAndReleasesChat(t *testing.T) {
	db := newSvcDB(t)
	sess := newSessionService(db, &fakeBus{})
	ctx := context.Background()

	chat, _ := sess.GetOrCreate(ctx, client(1), domain.ChatTypeRegular)
	if _, err := sess.Accept(ctx, volunteer(100), chat.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	rec, err := sess.Blocks.Block(ctx, volunteer(100), 1, chat.ID)
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if rec == nil || rec.BlockerID != 100 || rec.BlockedID != 1 {
		t.Fatalf("unexpected block record: %+v", rec)
	}

	got, err := repo.GetChatBare(ctx, db, chat.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.VolunteerID != nil {
		t.Fatalf("blocked chat should return to the pool, got volunteer %v", *got.VolunteerID)
	}
}

func TestBlock_RepeatIsNoop(t *testing.T) {
	db := newSvcDB(t)
	blocks := &BlockService{DB: db}
	sess := newSessionService(db, &fakeBus{})
	ctx := context.Background()

	chat, _ := sess.GetOrCreate(ctx, client(1), domain.ChatTypeRegular)

	if _, err := blocks.Block(ctx, volunteer(100), 1, chat.ID); err != nil {
		t.Fatalf("first Block: %v", err)
	}
	rec, err := blocks.Block(ctx, volunteer(100), 1, chat.ID)
	if err != nil {
		t.Fatalf("repeat Block should be a no-op, got %v", err)
	}
	if rec != nil {
		t.Fatalf("repeat Block should not return a record, got %+v", rec)
	}

	n, err := repo.CountBlockRecords(ctx, db, 100)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected single block record, got %d", n)
	}
}

func TestBlock_VolunteerOnly(t *testing.T) {
	db := newSvcDB(t)
	blocks := &BlockService{DB: db}

	if _, err := blocks.Block(context.Background(), client(1), 2, "c1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestBlock_InvalidTargets(t *testing.T) {
	db := newSvcDB(t)
	blocks := &BlockService{DB: db}
	ctx := context.Background()

	if _, err := blocks.Block(ctx, volunteer(100), 0, "c1"); !errors.Is(err, ErrInvalidBlockTarget) {
		t.Fatalf("zero target: want ErrInvalidBlockTarget, got %v", err)
	}
	if _, err := blocks.Block(ctx, volunteer(100), 100, "c1"); !errors.Is(err, ErrInvalidBlockTarget) {
		t.Fatalf("self block: want ErrInvalidBlockTarget, got %v", err)
	}
	if _, err := blocks.Block(ctx, volunteer(100), 1, ""); !errors.Is(err, ErrMissingChatID) {
		t.Fatalf("missing chat: want ErrMissingChatID, got %v", err)
	}
}

func TestBlockedIDs_RoundTrip(t *testing.T) {
	db := newSvcDB(t)
	blocks := &BlockService{DB: db}
	sess := newSessionService(db, &fakeBus{})
	ctx := context.Background()

	c1, _ := sess.GetOrCreate(ctx, client(1), domain.ChatTypeRegular)
	c2, _ := sess.GetOrCreate(ctx, client(2), domain.ChatTypeRegular)
	if _, err := blocks.Block(ctx, volunteer(100), 1, c1.ID); err != nil {
		t.Fatalf("block 1: %v", err)
	}
	if _, err := blocks.Block(ctx, volunteer(100), 2, c2.ID); err != nil {
		t.Fatalf("block 2: %v", err)
	}

	ids, err := blocks.BlockedIDs(ctx, 100)
	if err != nil {
		t.Fatalf("BlockedIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 blocked ids, got %v", ids)
	}
	if !IsBlocked(1, ids) || !IsBlocked(2, ids) || IsBlocked(3, ids) {
		t.Fatalf("IsBlocked mismatch for ids %v", ids)
	}

	// The relation is one-directional.
	other, err := blocks.BlockedIDs(ctx, 1)
	if err != nil {
		t.Fatalf("BlockedIDs(1): %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("blocked user should have no block list, got %v", other)
	}
}
