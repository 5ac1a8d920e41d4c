package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weddingtg/models"
)

type fakeUploader struct {
	mu      sync.Mutex
	rows    [][]interface{}
	failing bool
}

func (u *fakeUploader) EnsureHeader(ctx context.Context) error { return nil }

func (u *fakeUploader) UpsertRow(ctx context.Context, row []interface{}) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.failing {
		return errors.New("upstream unavailable")
	}
	u.rows = append(u.rows, row)
	return nil
}

func (u *fakeUploader) uploaded() [][]interface{} {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([][]interface{}, len(u.rows))
	copy(out, u.rows)
	return out
}

func TestSheetSyncSingleGuest(t *testing.T) {
	db := testDB(t)
	guest := newGuest(t, db, 777)
	name := "Пётр Сидоров"
	require.NoError(t, db.Model(&models.Profile{}).Where("guest_id = ?", guest.ID).
		Update("full_name", name).Error)

	EnqueueSheetSync(db, &guest.TelegramUserID, "profile_update")

	uploader := &fakeUploader{}
	worker := NewSheetSyncWorker(db, uploader)

	processed, _ := worker.tick(context.Background())
	require.True(t, processed)

	rows := uploader.uploaded()
	require.Len(t, rows, 1)
	assert.Equal(t, fmt.Sprintf("%v", int64(777)), fmt.Sprintf("%v", rows[0][0]))
	assert.Equal(t, name, rows[0][2])

	var job models.SheetSyncJob
	require.NoError(t, db.First(&job).Error)
	assert.Equal(t, models.SheetJobDone, job.Status)
}

func TestSheetSyncAll(t *testing.T) {
	db := testDB(t)
	newGuest(t, db, 101)
	newGuest(t, db, 202)

	EnqueueSheetSync(db, nil, "admin_sync")

	uploader := &fakeUploader{}
	worker := NewSheetSyncWorker(db, uploader)

	processed, _ := worker.tick(context.Background())
	require.True(t, processed)
	assert.Len(t, uploader.uploaded(), 2)
}

func TestSheetSyncMissingGuestCompletes(t *testing.T) {
	db := testDB(t)
	gone := int64(999)
	EnqueueSheetSync(db, &gone, "profile_update")

	worker := NewSheetSyncWorker(db, &fakeUploader{})
	processed, _ := worker.tick(context.Background())
	require.True(t, processed)

	var job models.SheetSyncJob
	require.NoError(t, db.First(&job).Error)
	assert.Equal(t, models.SheetJobDone, job.Status)
}

func TestSheetSyncRetriesThenParksFailed(t *testing.T) {
	db := testDB(t)
	guest := newGuest(t, db, 777)
	EnqueueSheetSync(db, &guest.TelegramUserID, "profile_update")

	uploader := &fakeUploader{failing: true}
	worker := NewSheetSyncWorker(db, uploader)

	for i := 0; i < sheetMaxAttempts; i++ {
		processed, retryIn := worker.tick(context.Background())
		assert.False(t, processed)
		assert.Greater(t, retryIn, time.Duration(0))
	}

	var job models.SheetSyncJob
	require.NoError(t, db.First(&job).Error)
	assert.Equal(t, models.SheetJobFailed, job.Status)
	assert.Equal(t, sheetMaxAttempts, job.Attempts)

	// Parked jobs are not picked up again.
	processed, _ := worker.tick(context.Background())
	assert.False(t, processed)
}

func TestGuestRowColumnLayout(t *testing.T) {
	db := testDB(t)
	guest := newGuest(t, db, 777)
	username := "petr"
	require.NoError(t, db.Model(&models.Guest{}).Where("id = ?", guest.ID).
		Update("username", username).Error)
	guest = reloadGuest(t, db, guest.ID)

	var profile models.Profile
	require.NoError(t, db.Where("guest_id = ?", guest.ID).First(&profile).Error)

	family := &models.FamilyProfile{
		GuestID: guest.ID,
		Children: []models.Child{
			{Name: "Лиза", Age: 5},
			{Name: "Миша"},
		},
	}

	row := GuestRow(guest, &profile, family)
	require.Len(t, row, len(sheetHeaders))
	assert.Equal(t, int64(777), row[0])
	assert.Equal(t, "petr", row[1])
	assert.Equal(t, "Лиза (5), Миша", row[8])
}
