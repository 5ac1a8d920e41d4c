package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"weddingtg/models"
)

const (
	sheetPollInterval = 5 * time.Second
	sheetMaxAttempts  = 5
	sheetMaxBackoff   = 30 * time.Second
)

// EnqueueSheetSync queues a mirror update for one guest, or for the
// whole sheet when telegramID is nil. Enqueue failures are logged and
// swallowed — the mirror is never allowed to fail a user operation.
func EnqueueSheetSync(db *gorm.DB, telegramID *int64, reason string) {
	jobType := models.SheetJobSyncAll
	if telegramID != nil {
		jobType = models.SheetJobSyncGuest
	}
	payload, _ := json.Marshal(map[string]string{"reason": reason})
	job := models.SheetSyncJob{
		Type:       jobType,
		TelegramID: telegramID,
		Status:     models.SheetJobPending,
		Payload:    string(payload),
	}
	if err := db.Create(&job).Error; err != nil {
		log.Printf("[Sheets] enqueue failed: %v", err)
	}
}

// SheetSyncWorker drains the SheetSyncJob queue into the spreadsheet.
// Jobs are retried up to sheetMaxAttempts with a linear backoff capped
// at sheetMaxBackoff; past that they are parked as failed.
type SheetSyncWorker struct {
	db       *gorm.DB
	uploader SheetUploader
}

func NewSheetSyncWorker(db *gorm.DB, uploader SheetUploader) *SheetSyncWorker {
	return &SheetSyncWorker{db: db, uploader: uploader}
}

// Run polls until ctx is canceled. Intended to run as a goroutine next
// to the HTTP server.
func (w *SheetSyncWorker) Run(ctx context.Context) {
	log.Printf("[Sheets] sync worker started")
	for {
		wait := sheetPollInterval
		if processed, retryIn := w.tick(ctx); processed {
			wait = 0
		} else if retryIn > 0 {
			wait = retryIn
		}

		select {
		case <-ctx.Done():
			log.Printf("[Sheets] sync worker stopped")
			return
		case <-time.After(wait):
		}
	}
}

// tick claims and processes one pending job. Returns whether a job was
// processed and an optional extra delay after a failure.
func (w *SheetSyncWorker) tick(ctx context.Context) (bool, time.Duration) {
	var job models.SheetSyncJob
	err := w.db.Where("status = ?", models.SheetJobPending).Order("created_at ASC").First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, 0
	}
	if err != nil {
		log.Printf("[Sheets] queue read failed: %v", err)
		return false, 0
	}

	if err := w.db.Model(&job).Update("status", models.SheetJobProcessing).Error; err != nil {
		log.Printf("[Sheets] job %d claim failed: %v", job.ID, err)
		return false, 0
	}

	if err := w.process(ctx, &job); err != nil {
		job.Attempts++
		status := models.SheetJobPending
		if job.Attempts >= sheetMaxAttempts {
			status = models.SheetJobFailed
		}
		if err := w.db.Model(&job).Updates(map[string]interface{}{
			"status":   status,
			"attempts": job.Attempts,
		}).Error; err != nil {
			log.Printf("[Sheets] job %d status write failed: %v", job.ID, err)
		}
		log.Printf("[Sheets] job %d failed (attempt %d): %v", job.ID, job.Attempts, err)

		backoff := sheetPollInterval * time.Duration(job.Attempts+1)
		if backoff > sheetMaxBackoff {
			backoff = sheetMaxBackoff
		}
		return false, backoff
	}

	if err := w.db.Model(&job).Update("status", models.SheetJobDone).Error; err != nil {
		log.Printf("[Sheets] job %d status write failed: %v", job.ID, err)
	}
	return true, 0
}

func (w *SheetSyncWorker) process(ctx context.Context, job *models.SheetSyncJob) error {
	if err := w.uploader.EnsureHeader(ctx); err != nil {
		return err
	}

	if job.Type == models.SheetJobSyncAll {
		var guests []models.Guest
		if err := w.db.Find(&guests).Error; err != nil {
			return err
		}
		for i := range guests {
			if err := w.syncGuest(ctx, &guests[i]); err != nil {
				return err
			}
		}
		return nil
	}

	if job.TelegramID == nil {
		return nil
	}
	var guest models.Guest
	err := w.db.Where("telegram_user_id = ?", *job.TelegramID).First(&guest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil // guest gone, nothing to mirror
	}
	if err != nil {
		return err
	}
	return w.syncGuest(ctx, &guest)
}

func (w *SheetSyncWorker) syncGuest(ctx context.Context, guest *models.Guest) error {
	var profile models.Profile
	if err := w.db.Where("guest_id = ?", guest.ID).First(&profile).Error; err != nil {
		return err
	}

	var family *models.FamilyProfile
	var fp models.FamilyProfile
	if err := w.db.Where("guest_id = ?", guest.ID).First(&fp).Error; err == nil {
		family = &fp
	}

	return w.uploader.UpsertRow(ctx, GuestRow(guest, &profile, family))
}
