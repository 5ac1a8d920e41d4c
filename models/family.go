package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxGroupMembers is the hard cap on adult members per family group.
const MaxGroupMembers = 2

// Invite statuses. pending is the only non-terminal state; expiry is
// discovered lazily on access and recorded as declined.
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusDeclined = "declined"
	InviteStatusCanceled = "canceled"
)

// InviteTTL is how long an invite stays acceptable after creation.
const InviteTTL = 7 * 24 * time.Hour

// FamilyGroup is a pairing container for up to two adult guests.
// Groups that drop to one or zero members are deleted by the mutation
// that caused it, never left dangling.
type FamilyGroup struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// InviteToken grants the right to join a specific family group.
// Rows are append-only: cancellation and expiry are status changes,
// not deletions.
type InviteToken struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Token                 string     `gorm:"size:64;uniqueIndex;not null" json:"token"`
	FamilyGroupID         uint       `gorm:"index;not null" json:"family_group_id"`
	InviterGuestID        uint       `gorm:"index;not null" json:"inviter_guest_id"`
	UsedByGuestID         *uint      `json:"used_by_guest_id"`
	InviteeTelegramUserID *int64     `gorm:"index" json:"invitee_telegram_user_id"`
	Status                string     `gorm:"size:16;default:'pending'" json:"status"`
	AcceptedAt            *time.Time `json:"accepted_at"`
	DeclinedAt            *time.Time `json:"declined_at"`
	CanceledAt            *time.Time `json:"canceled_at"`
	ExpiresAt             time.Time  `json:"expires_at"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (i *InviteToken) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Expired reports whether the invite is past its expiry at t.
func (i *InviteToken) Expired(t time.Time) bool {
	return t.After(i.ExpiresAt)
}
