// Package domain defines the persistence models for the chat-matching core:
// chats, messages, block records, and chat reports. These types are mapped
// with GORM and shared across the repository and service layers.
package domain

import (
	"time"
)

// ChatType partitions chats into the two supported conversation modes.
type ChatType string

const (
	// ChatTypeRegular is a standard client↔volunteer support conversation.
	ChatTypeRegular ChatType = "regular"
	// ChatTypeRoleplay is a practice conversation where volunteers may also
	// participate on the client side.
	ChatTypeRoleplay ChatType = "roleplay"
)

// Valid reports whether t is one of the known chat types.
func (t ChatType) Valid() bool {
	return t == ChatTypeRegular || t == ChatTypeRoleplay
}

// MessageType records the direction of a message within a chat.
type MessageType string

const (
	MessageClientToVolunteer MessageType = "CLIENT_TO_VOLUNTEER"
	MessageVolunteerToClient MessageType = "VOLUNTEER_TO_CLIENT"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	return t == MessageClientToVolunteer || t == MessageVolunteerToClient
}

// Chat represents a support session between a client and, once matched, a
// volunteer. A chat with a nil VolunteerID is "unmatched" and visible to
// eligible volunteers; setting VolunteerID claims it. Signing off or blocking
// clears VolunteerID again, returning the chat to the unmatched pool.
//
// LastMessageAt is denormalized: it starts at creation time and must always
// equal the CreatedAt of the newest persisted message in the chat. The
// message repository updates it in the same transaction as each insert.
type Chat struct {
	ID            string    `json:"chat_id"         gorm:"type:char(36);primaryKey"`
	ClientID      int64     `json:"client_id"       gorm:"not null;index:idx_client_chats"`
	VolunteerID   *int64    `json:"volunteer_id"    gorm:"index:idx_volunteer_chats"`
	ChatType      ChatType  `json:"chat_type"       gorm:"type:varchar(16);not null;default:'regular';check:chat_type IN ('regular','roleplay')"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at" gorm:"not null;index"`

	// Messages is the conversation body. Messages cannot outlive their chat.
	Messages []Message `json:"messages" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// Matched reports whether a volunteer has claimed the chat.
func (c *Chat) Matched() bool { return c.VolunteerID != nil }

// IsParticipant reports whether userID is the chat's client or its currently
// assigned volunteer.
func (c *Chat) IsParticipant(userID int64) bool {
	if c.ClientID == userID {
		return true
	}
	return c.VolunteerID != nil && *c.VolunteerID == userID
}

// Message is a single utterance within a chat. Messages are immutable except
// for the IsSeen flag, which is bulk-set when the counterpart reads the
// conversation.
type Message struct {
	ID        string      `json:"message_id" gorm:"type:char(36);primaryKey"`
	ChatID    string      `json:"chat_id"    gorm:"type:char(36);not null;index:idx_chat_msgs,priority:1"`
	SenderID  int64       `json:"sender_id"  gorm:"not null;index"`
	Content   string      `json:"content"    gorm:"type:text;not null"`
	Type      MessageType `json:"type"       gorm:"type:varchar(32);not null;check:type IN ('CLIENT_TO_VOLUNTEER','VOLUNTEER_TO_CLIENT')"`
	CreatedAt time.Time   `json:"created_at" gorm:"index:idx_chat_msgs,priority:2"`
	IsSeen    bool        `json:"is_seen"    gorm:"not null;default:false"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// BlockRecord is a directional block of one user by another. It is created
// only by a volunteer rejecting a client and is never updated or deleted in
// normal operation. The composite unique index makes repeated blocks of the
// same pair a no-op at the storage layer.
type BlockRecord struct {
	ID        string    `json:"block_record_id" gorm:"type:char(36);primaryKey"`
	BlockerID int64     `json:"blocker_user_id" gorm:"not null;index;uniqueIndex:ux_blocker_blocked,priority:1"`
	BlockedID int64     `json:"blocked_user_id" gorm:"not null;uniqueIndex:ux_blocker_blocked,priority:2"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for BlockRecord.
func (BlockRecord) TableName() string { return "block_records" }

// ChatReport is filed by a participant against a chat for moderator review.
// At most one unresolved report per (chat, filer) pair may exist at a time;
// the service layer enforces this before insertion.
type ChatReport struct {
	ID        string    `json:"report_id"   gorm:"type:char(36);primaryKey"`
	ChatID    string    `json:"chat_id"     gorm:"type:char(36);not null;index"`
	FiledByID int64     `json:"filed_by_id" gorm:"not null;index"`
	Report    string    `json:"report"      gorm:"type:text;not null"`
	Resolved  bool      `json:"resolved"    gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`

	// Chat is the reported conversation. Reports are cascade-deleted with it.
	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatReport.
func (ChatReport) TableName() string { return "chat_reports" }
