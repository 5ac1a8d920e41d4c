package models

import (
	"time"

	"gorm.io/datatypes"
)

// Child is one dependent on a family profile. Children are tracked as
// a structured ordered list, not a free-form bag.
type Child struct {
	Name    string `json:"name" binding:"required"`
	Age     int    `json:"age"`
	Contact string `json:"contact,omitempty"`
	GuestID *uint  `json:"guest_id,omitempty"`
}

type FamilyProfile struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	GuestID uint `gorm:"uniqueIndex;not null" json:"guest_id"`

	WithPartner bool                       `json:"with_partner"`
	PartnerName *string                    `gorm:"size:256" json:"partner_name"`
	Children    datatypes.JSONSlice[Child] `json:"children"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
