package models

import "time"

// DefaultEventContent seeds the event page before admins fill it in.
const DefaultEventContent = "Информация о мероприятии появится здесь."

type EventInfo struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"type:text" json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppSettings is a small key/value store for runtime toggles.
type AppSettings struct {
	Key       string    `gorm:"primaryKey;size:64" json:"key"`
	Value     string    `gorm:"size:32" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
