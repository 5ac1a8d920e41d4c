package models

import "time"

// Guest is a person identity, created lazily on first successful
// Telegram auth. A guest belongs to at most one family group.
type Guest struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	TelegramUserID int64   `gorm:"uniqueIndex;not null" json:"telegram_user_id"`
	Username       *string `gorm:"size:64" json:"username"`
	FirstName      *string `gorm:"size:128" json:"first_name"`
	LastName       *string `gorm:"size:128" json:"last_name"`
	Phone          *string `gorm:"size:32" json:"phone"`
	FamilyGroupID  *uint   `gorm:"index" json:"family_group_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName prefers the profile's full name, falling back to the
// Telegram first/last name pair.
func (g *Guest) DisplayName(p *Profile) string {
	if p != nil && p.FullName != nil && *p.FullName != "" {
		return *p.FullName
	}
	name := ""
	if g.FirstName != nil {
		name = *g.FirstName
	}
	if g.LastName != nil && *g.LastName != "" {
		if name != "" {
			name += " "
		}
		name += *g.LastName
	}
	return name
}
