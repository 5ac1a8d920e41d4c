package models

import "time"

// RSVP statuses.
const (
	RSVPUnknown = "unknown"
	RSVPYes     = "yes"
	RSVPNo      = "no"
	RSVPMaybe   = "maybe"
)

type Profile struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	GuestID uint `gorm:"uniqueIndex;not null" json:"guest_id"`

	RSVPStatus string `gorm:"size:16;default:'unknown'" json:"rsvp_status"`

	FullName   *string    `gorm:"size:256" json:"full_name"`
	BirthDate  *time.Time `json:"birth_date"`
	Gender     *string    `gorm:"size:16" json:"gender"` // male/female/other
	Side       *string    `gorm:"size:16" json:"side"`   // groom/bride/both
	IsRelative bool       `json:"is_relative"`

	FoodPref      *string `gorm:"size:16" json:"food_pref"` // fish/meat/vegan
	FoodAllergies *string `gorm:"type:text" json:"food_allergies"`

	AlcoholPrefsCSV *string `gorm:"type:text" json:"-"`

	ExtraKnownSince *string `gorm:"size:32" json:"extra_known_since"` // groom/bride/both
	ExtraMemory     *string `gorm:"type:text" json:"extra_memory"`
	ExtraFact       *string `gorm:"type:text" json:"extra_fact"`

	// Up to 5 Telegram file_id values.
	PhotosCSV     *string    `gorm:"type:text" json:"-"`
	WelcomeSeenAt *time.Time `json:"welcome_seen_at"`

	// Partner linking by exact name+birthdate match. Pending fields hold
	// a submitted identity until the partner registers.
	PartnerGuestID          *uint      `json:"partner_guest_id"`
	PartnerPendingFullName  *string    `gorm:"size:256" json:"partner_pending_full_name"`
	PartnerPendingBirthDate *time.Time `json:"partner_pending_birth_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
