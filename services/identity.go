package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"weddingtg/models"
)

// IdentityService resolves external identities to durable guest rows,
// creating guest+profile pairs on first sight.
type IdentityService struct {
	db *gorm.DB
}

func NewIdentityService(db *gorm.DB) *IdentityService {
	return &IdentityService{db: db}
}

// ResolveOrCreate looks a guest up by Telegram user id and lazily
// creates the guest and an empty profile placeholder.
func (s *IdentityService) ResolveOrCreate(user *TelegramUser) (*models.Guest, error) {
	var guest models.Guest
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("telegram_user_id = ?", user.ID).First(&guest).Error
		if err == nil {
			return ensureProfile(tx, guest.ID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		guest = models.Guest{
			TelegramUserID: user.ID,
			Username:       optional(user.Username),
			FirstName:      optional(user.FirstName),
			LastName:       optional(user.LastName),
		}
		if err := tx.Create(&guest).Error; err != nil {
			return err
		}
		return tx.Create(&models.Profile{GuestID: guest.ID}).Error
	})
	if err != nil {
		return nil, err
	}
	return &guest, nil
}

// ResolveByTelegramID is the internal-secret path used by the bot:
// no launch payload, just a trusted Telegram user id.
func (s *IdentityService) ResolveByTelegramID(telegramUserID int64) (*models.Guest, error) {
	return s.ResolveOrCreate(&TelegramUser{ID: telegramUserID})
}

// GuestFromInviteToken resolves an unconsumed, unexpired invite to its
// inviter's guest row. This is the alternate entry path for users who
// received a link but have not launched the app themselves.
func (s *IdentityService) GuestFromInviteToken(token string) (*models.Guest, error) {
	var invite models.InviteToken
	err := s.db.Where("token = ? AND status = ?", token, models.InviteStatusPending).First(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if invite.Expired(time.Now().UTC()) {
		return nil, ErrUnauthorized
	}

	var guest models.Guest
	if err := s.db.First(&guest, invite.InviterGuestID).Error; err != nil {
		return nil, ErrUnauthorized
	}
	if err := ensureProfile(s.db, guest.ID); err != nil {
		return nil, err
	}
	return &guest, nil
}

func ensureProfile(tx *gorm.DB, guestID uint) error {
	var count int64
	if err := tx.Model(&models.Profile{}).Where("guest_id = ?", guestID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.Create(&models.Profile{GuestID: guestID}).Error
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
