// Package services – SessionService
//
// This file implements the matching and session engine: create-or-resume for
// clients, the unmatched-pool listing for volunteers, the atomic accept
// claim, and sign-off. A chat moves UNMATCHED → MATCHED when a volunteer
// claims it and back to UNMATCHED on sign-off or block; staleness is derived
// from last_message_at and never stored.
//
// Concurrency notes:
//   - Create-or-resume serializes per client through an in-process keyed
//     mutex, so two near-simultaneous calls inside the activity window cannot
//     race each other into two sessions.
//   - Accept delegates to a conditional UPDATE in the repository; exactly one
//     concurrent claimer wins, the rest get ErrChatAlreadyMatched.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// chat/user identifiers, never message content.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/calmbridge/support-chat-backend/internal/domain"
	"github.com/calmbridge/support-chat-backend/internal/pubsub"
	"github.com/calmbridge/support-chat-backend/internal/repo"
)

// DefaultStaleness is the activity window after which a chat no longer counts
// as the client's live session and drops out of default listings.
const DefaultStaleness = 6 * time.Hour

// GreetingMessage is the system-authored opener inserted into every freshly
// created chat on the client's behalf.
const GreetingMessage = "Hey there, I need someone to talk to."

// SessionService owns the chat lifecycle state machine.
type SessionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Bus receives chat.created / chat.accepted events.
	Bus EventBus
	// Blocks supplies block lists for listing visibility.
	Blocks *BlockService
	// Staleness overrides DefaultStaleness when > 0.
	Staleness time.Duration

	// clientLocks stripes create-or-resume serialization across a fixed set
	// of mutexes so the table stays bounded regardless of how many distinct
	// clients a long-running process sees. Two clients sharing a stripe only
	// ever cost a short wait on each other's transaction.
	clientLocks [64]sync.Mutex
}

// NewSessionService constructs a SessionService with the default staleness
// window.
func NewSessionService(db *gorm.DB, bus EventBus, blocks *BlockService) *SessionService {
	return &SessionService{
		DB:        db,
		Bus:       bus,
		Blocks:    blocks,
		Staleness: DefaultStaleness,
	}
}

// staleness returns the effective activity window.
func (s *SessionService) staleness() time.Duration {
	if s.Staleness > 0 {
		return s.Staleness
	}
	return DefaultStaleness
}

// clientLock returns the stripe mutex serializing session creation for one
// client.
func (s *SessionService) clientLock(clientID int64) *sync.Mutex {
	return &s.clientLocks[uint64(clientID)%uint64(len(s.clientLocks))]
}

// checkSessionRole enforces who may open a session of each type: clients own
// regular sessions, volunteers own roleplay practice sessions.
func checkSessionRole(caller *Caller, chatType domain.ChatType) error {
	if !caller.Authenticated() {
		return ErrUnauthenticated
	}
	if !chatType.Valid() {
		return ErrInvalidChatType
	}
	switch chatType {
	case domain.ChatTypeRoleplay:
		if caller.Role != RoleVolunteer {
			return ErrUnauthorized
		}
	case domain.ChatTypeRegular:
		if caller.Role != RoleClient {
			return ErrUnauthorized
		}
	}
	return nil
}

// ActiveSession returns the caller's most recent chat of the requested type
// when its last activity falls within the staleness window, or nil when the
// caller has no live session. It never creates anything.
//
// The lookup filters by chat type for both regular and roleplay sessions.
// (The system this replaces skipped the type filter on the regular path,
// which could resume a roleplay chat for a regular request; that was judged a
// defect, not behavior to keep.)
func (s *SessionService) ActiveSession(ctx context.Context, caller *Caller, chatType domain.ChatType) (*domain.Chat, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "ActiveSession",
		trace.WithAttributes(attribute.String("chat.type", string(chatType))),
	)
	defer span.End()

	if err := checkSessionRole(caller, chatType); err != nil {
		return nil, err
	}
	return s.liveSession(ctx, caller.ID, chatType)
}

// liveSession fetches the newest chat of the given type for clientID and
// applies the staleness window. A stale or missing chat yields (nil, nil).
func (s *SessionService) liveSession(ctx context.Context, clientID int64, chatType domain.ChatType) (*domain.Chat, error) {
	chat, err := repo.FindLatestChat(ctx, s.DB, clientID, chatType)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	cutoff := time.Now().UTC().Add(-s.staleness())
	if chat.LastMessageAt.After(cutoff) {
		return chat, nil
	}
	return nil, nil
}

// GetOrCreate returns the caller's live session of the requested type, or
// creates a fresh unmatched chat seeded with the system greeting. Repeated
// calls inside the activity window always return the same chat; the per-client
// lock extends that guarantee to concurrent calls.
//
// A newly created chat is announced on the chat.created stream so volunteers
// see it appear in their pool.
func (s *SessionService) GetOrCreate(ctx context.Context, caller *Caller, chatType domain.ChatType) (*domain.Chat, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "GetOrCreate",
		trace.WithAttributes(attribute.String("chat.type", string(chatType))),
	)
	defer span.End()

	if err := checkSessionRole(caller, chatType); err != nil {
		return nil, err
	}

	lock := s.clientLock(caller.ID)
	lock.Lock()
	defer lock.Unlock()

	if chat, err := s.liveSession(ctx, caller.ID, chatType); err != nil || chat != nil {
		return chat, err
	}

	// No live session: create chat + greeting atomically so last_message_at
	// matches the greeting's timestamp from the first instant.
	var chatID string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chat, err := repo.CreateChat(ctx, tx, caller.ID, chatType)
		if err != nil {
			return err
		}
		chatID = chat.ID
		msg, err := repo.CreateMessage(ctx, tx, chat.ID, caller.ID, GreetingMessage, domain.MessageClientToVolunteer)
		if err != nil {
			return err
		}
		return repo.TouchLastMessage(ctx, tx, chat.ID, msg.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	created, err := repo.GetChat(ctx, s.DB, chatID)
	if err != nil {
		return nil, err
	}
	s.Bus.Publish(ctx, pubsub.TopicChatCreated, created)
	return created, nil
}

// List returns the sessions visible to a volunteer. Regular chats must be
// active within the staleness window and either held by the caller or
// unmatched, with chats from blocked clients filtered out. Roleplay chats
// have no window and also include chats where the caller is the client.
// Chats come back ordered by last activity descending with messages
// newest-first.
func (s *SessionService) List(ctx context.Context, caller *Caller, chatType domain.ChatType) ([]domain.Chat, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(attribute.String("chat.type", string(chatType))),
	)
	defer span.End()

	if !caller.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if !caller.IsVolunteer() {
		return nil, ErrUnauthorized
	}
	if !chatType.Valid() {
		return nil, ErrInvalidChatType
	}

	if chatType == domain.ChatTypeRoleplay {
		return repo.ListRoleplayChats(ctx, s.DB, caller.ID)
	}

	blocked, err := s.Blocks.BlockedIDs(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	since := time.Now().UTC().Add(-s.staleness())
	return repo.ListRegularChats(ctx, s.DB, caller.ID, since, blocked)
}

// Accept claims an unmatched chat for the calling volunteer. The claim is a
// single conditional update at the storage layer: when the chat is already
// held, the caller gets ErrChatAlreadyMatched and should refresh its listing.
// On success the accepted chat is announced on the chat.accepted stream so
// the waiting client learns a volunteer arrived.
func (s *SessionService) Accept(ctx context.Context, caller *Caller, chatID string) (*domain.Chat, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "Accept",
		trace.WithAttributes(attribute.String("chat.id", chatID)),
	)
	defer span.End()

	if !caller.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if !caller.IsVolunteer() {
		return nil, ErrUnauthorized
	}
	if chatID == "" {
		return nil, ErrMissingChatID
	}

	if err := repo.ClaimChat(ctx, s.DB, chatID, caller.ID); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrChatNotFound
		case errors.Is(err, repo.ErrAlreadyClaimed):
			return nil, ErrChatAlreadyMatched
		}
		return nil, err
	}

	chat, err := repo.GetChat(ctx, s.DB, chatID)
	if err != nil {
		return nil, err
	}
	s.Bus.Publish(ctx, pubsub.TopicChatAccepted, chat)
	return chat, nil
}

// SignOff releases the caller's regular chats back to the unmatched pool.
// Roleplay chats in the list are skipped: practice sessions are not
// relinquishable through this path. Each released chat is re-announced on the
// chat.created stream so it becomes visible to volunteers again.
func (s *SessionService) SignOff(ctx context.Context, caller *Caller, chatIDs []string) error {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "SignOff",
		trace.WithAttributes(attribute.Int("chat.count", len(chatIDs))),
	)
	defer span.End()

	if !caller.Authenticated() {
		return ErrUnauthenticated
	}
	if !caller.IsVolunteer() {
		return ErrUnauthorized
	}
	if len(chatIDs) == 0 {
		return ErrMissingChatIDs
	}

	chats, err := repo.ListParticipantChats(ctx, s.DB, chatIDs, caller.ID)
	if err != nil {
		return err
	}

	release := make([]string, 0, len(chats))
	for _, c := range chats {
		if c.ChatType == domain.ChatTypeRoleplay {
			continue
		}
		release = append(release, c.ID)
	}
	if len(release) == 0 {
		return nil
	}

	if _, err := repo.ReleaseChats(ctx, s.DB, release); err != nil {
		return err
	}

	released, err := repo.ListChatsByIDs(ctx, s.DB, release)
	if err != nil {
		return err
	}
	for i := range released {
		s.Bus.Publish(ctx, pubsub.TopicChatCreated, &released[i])
	}
	return nil
}
