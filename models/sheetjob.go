package models

import "time"

// Sheet sync job types and statuses.
const (
	SheetJobSyncGuest = "sync_guest"
	SheetJobSyncAll   = "sync_all"

	SheetJobPending    = "pending"
	SheetJobProcessing = "processing"
	SheetJobDone       = "done"
	SheetJobFailed     = "failed"
)

// SheetSyncJob queues a spreadsheet mirror update. Jobs are retried
// with a capped backoff by the worker.
type SheetSyncJob struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Type       string `gorm:"size:32;not null" json:"type"`
	TelegramID *int64 `gorm:"index" json:"telegram_id"`
	Status     string `gorm:"size:16;default:'pending';index" json:"status"`
	Attempts   int    `json:"attempts"`
	Payload    string `gorm:"type:text" json:"payload"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
