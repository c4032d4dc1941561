// Package services – caller identity
//
// The platform's auth layer (JWT validation) lives outside this core; what
// reaches the services is a Caller value carrying the authenticated user's id
// and an explicit role tag. Role is never inferred from the shape of some
// user object: it is a closed enum set by the identity adapter.
package services

import (
	"context"

	"github.com/calmbridge/support-chat-backend/internal/pubsub"
)

// Role is the platform role attached to an authenticated user.
type Role string

// The closed set of platform roles.
const (
	RoleClient    Role = "client"
	RoleVolunteer Role = "volunteer"
	RoleTherapist Role = "therapist"
	RoleAdmin     Role = "admin"
	RoleNewUser   Role = "newuser"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleVolunteer, RoleTherapist, RoleAdmin, RoleNewUser:
		return true
	}
	return false
}

// Caller is the authenticated identity attached to every operation.
// An absent, unapproved, or banned caller counts as unauthenticated.
type Caller struct {
	ID         int64
	Role       Role
	IsApproved bool
	IsBanned   bool
}

// Authenticated reports whether the caller may use the platform at all.
func (c *Caller) Authenticated() bool {
	return c != nil && c.ID > 0 && c.Role.Valid() && c.IsApproved && !c.IsBanned
}

// IsVolunteer reports whether the caller holds the volunteer role.
func (c *Caller) IsVolunteer() bool {
	return c != nil && c.Role == RoleVolunteer
}

// EventBus is the slice of the pubsub broker the services publish through.
// Keeping it an interface lets tests capture events with a fake.
type EventBus interface {
	Publish(ctx context.Context, topic pubsub.Topic, payload any)
}
