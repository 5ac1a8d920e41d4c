package services

import (
	"context"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"weddingtg/models"
)

// testDB opens a fresh in-memory sqlite database with the full schema.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// A second connection would see an empty :memory: database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Guest{},
		&models.Profile{},
		&models.FamilyGroup{},
		&models.InviteToken{},
		&models.FamilyProfile{},
		&models.EventInfo{},
		&models.AppSettings{},
		&models.ChangeLog{},
		&models.SheetSyncJob{},
	))
	return db
}

// newGuest seeds a guest with an empty profile, as the identity store
// would on first resolution.
func newGuest(t *testing.T, db *gorm.DB, telegramUserID int64) *models.Guest {
	t.Helper()
	guest := models.Guest{TelegramUserID: telegramUserID}
	require.NoError(t, db.Create(&guest).Error)
	require.NoError(t, db.Create(&models.Profile{GuestID: guest.ID}).Error)
	return &guest
}

func reloadGuest(t *testing.T, db *gorm.DB, id uint) *models.Guest {
	t.Helper()
	var guest models.Guest
	require.NoError(t, db.First(&guest, id).Error)
	return &guest
}

func loadInvite(t *testing.T, db *gorm.DB, token string) *models.InviteToken {
	t.Helper()
	var invite models.InviteToken
	require.NoError(t, db.Where("token = ?", token).First(&invite).Error)
	return &invite
}

// recordingNotifier captures deliveries for assertions.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

type sentMessage struct {
	ChatID int64
	Text   string
}

func (n *recordingNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentMessage, len(n.sent))
	copy(out, n.sent)
	return out
}
