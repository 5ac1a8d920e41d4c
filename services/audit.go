package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"weddingtg/models"
)

// AdminEventsChannel is the redis pub/sub channel feeding the admin
// live change feed.
const AdminEventsChannel = "admin:events"

// Audit records field-level profile changes and fans them out to the
// admin event feed. The feed publish is best effort.
type Audit struct {
	rdb *redis.Client
}

func NewAudit(rdb *redis.Client) *Audit {
	return &Audit{rdb: rdb}
}

// RecordChange writes a ChangeLog row inside the caller's transaction
// when old and new differ. The redis publish happens immediately; a
// rolled-back transaction can at worst produce a spurious feed entry.
func (a *Audit) RecordChange(tx *gorm.DB, guestID uint, field string, oldValue, newValue interface{}) error {
	oldStr := stringify(oldValue)
	newStr := stringify(newValue)
	if equalValue(oldStr, newStr) {
		return nil
	}

	entry := models.ChangeLog{
		GuestID:  guestID,
		Field:    field,
		OldValue: oldStr,
		NewValue: newStr,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}

	a.publish(map[string]interface{}{
		"event":    "profile_changed",
		"guest_id": guestID,
		"field":    field,
		"old":      oldStr,
		"new":      newStr,
	})
	return nil
}

// Publish pushes an arbitrary admin event onto the feed.
func (a *Audit) Publish(event string, payload map[string]interface{}) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["event"] = event
	a.publish(payload)
}

func (a *Audit) publish(payload map[string]interface{}) {
	if a.rdb == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.rdb.Publish(ctx, AdminEventsChannel, data).Err(); err != nil {
		log.Printf("[Audit] publish failed: %v", err)
	}
}

func stringify(v interface{}) *string {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case *string:
		return t
	case string:
		return &t
	case *time.Time:
		if t == nil {
			return nil
		}
		s := t.Format("2006-01-02")
		return &s
	default:
		s := fmt.Sprintf("%v", v)
		return &s
	}
}

func equalValue(a, b *string) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
