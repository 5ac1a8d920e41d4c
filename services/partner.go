package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"weddingtg/models"
)

// PartnerService implements the alternate linking path: exact
// name+birthdate matching across profiles. It is deliberately
// best-effort and eventually consistent — a miss is not an error, it
// just parks the submitted identity as pending.
type PartnerService struct {
	db *gorm.DB
}

func NewPartnerService(db *gorm.DB) *PartnerService {
	return &PartnerService{db: db}
}

// LinkByIdentity searches for a profile with the exact full name and
// birth date, excluding the acting guest. On a hit it links the acting
// profile and, only if the candidate has no partner yet, back-links the
// candidate (an existing link on the candidate side is never
// overwritten). On a miss it clears the link and stores the submitted
// fields for a future match.
func (s *PartnerService) LinkByIdentity(guestID uint, fullName string, birthDate time.Time) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("guest_id = ?", guestID).First(&profile).Error; err != nil {
			return err
		}

		var candidate models.Profile
		err := tx.Where("full_name = ? AND birth_date = ? AND guest_id <> ?", fullName, birthDate, guestID).
			First(&candidate).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err == nil {
			profile.PartnerGuestID = &candidate.GuestID
			profile.PartnerPendingFullName = nil
			profile.PartnerPendingBirthDate = nil

			if candidate.PartnerGuestID == nil {
				if err := tx.Model(&candidate).Update("partner_guest_id", guestID).Error; err != nil {
					return err
				}
			}
		} else {
			profile.PartnerGuestID = nil
			profile.PartnerPendingFullName = &fullName
			profile.PartnerPendingBirthDate = &birthDate
		}

		return tx.Save(&profile).Error
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
