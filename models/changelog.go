package models

import "time"

// ChangeLog records every field-level profile change for admin review.
type ChangeLog struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	GuestID  uint    `gorm:"index;not null" json:"guest_id"`
	Field    string  `gorm:"size:128;not null" json:"field"`
	OldValue *string `gorm:"type:text" json:"old_value"`
	NewValue *string `gorm:"type:text" json:"new_value"`

	CreatedAt time.Time `json:"created_at"`
}
