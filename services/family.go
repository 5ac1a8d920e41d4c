package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"weddingtg/models"
	"weddingtg/utils"
)

const tokenRetries = 3

// FamilyService owns the invite ledger, group membership and the
// cardinality invariants around both. Every state change runs in a
// single transaction; notifications go out only after commit and never
// fail the operation.
type FamilyService struct {
	db       *gorm.DB
	notifier Notifier
}

func NewFamilyService(db *gorm.DB, notifier Notifier) *FamilyService {
	return &FamilyService{db: db, notifier: notifier}
}

// lockForUpdate takes a row lock on postgres. sqlite has no row locks
// and serializes writers on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// Issue creates a pending invite into the acting guest's group,
// creating the group first if the guest has none. The group-pointer
// write is a compare-and-set so two concurrent calls cannot create two
// groups for the same guest.
func (s *FamilyService) Issue(guestID uint, inviteeTelegramUserID *int64) (string, error) {
	var token string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var guest models.Guest
		if err := lockForUpdate(tx).First(&guest, guestID).Error; err != nil {
			return err
		}

		groupID, err := ensureGroup(tx, &guest)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for attempt := 0; ; attempt++ {
			token = utils.GenerateInviteToken()
			invite := models.InviteToken{
				Token:                 token,
				FamilyGroupID:         groupID,
				InviterGuestID:        guest.ID,
				InviteeTelegramUserID: inviteeTelegramUserID,
				Status:                models.InviteStatusPending,
				ExpiresAt:             now.Add(models.InviteTTL),
			}
			err := tx.Create(&invite).Error
			if err == nil {
				return nil
			}
			if !errors.Is(err, gorm.ErrDuplicatedKey) || attempt >= tokenRetries {
				return err
			}
		}
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// ensureGroup returns the guest's group id, creating a group when the
// guest has none. Caller must hold the guest's row lock.
func ensureGroup(tx *gorm.DB, guest *models.Guest) (uint, error) {
	if guest.FamilyGroupID != nil {
		var group models.FamilyGroup
		err := lockForUpdate(tx).First(&group, *guest.FamilyGroupID).Error
		if err == nil {
			var count int64
			if err := tx.Model(&models.Guest{}).Where("family_group_id = ?", group.ID).Count(&count).Error; err != nil {
				return 0, err
			}
			if count >= models.MaxGroupMembers {
				return 0, ErrGroupFull
			}
			return group.ID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
		// Dangling pointer: the group is gone, treat as unset.
		guest.FamilyGroupID = nil
		if err := tx.Model(&models.Guest{}).Where("id = ?", guest.ID).Update("family_group_id", nil).Error; err != nil {
			return 0, err
		}
	}

	group := models.FamilyGroup{}
	if err := tx.Create(&group).Error; err != nil {
		return 0, err
	}

	res := tx.Model(&models.Guest{}).
		Where("id = ? AND family_group_id IS NULL", guest.ID).
		Update("family_group_id", group.ID)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		// A concurrent Issue won the race; use its group and drop ours.
		if err := tx.Delete(&models.FamilyGroup{}, group.ID).Error; err != nil {
			return 0, err
		}
		if err := tx.First(guest, guest.ID).Error; err != nil {
			return 0, err
		}
		if guest.FamilyGroupID == nil {
			return 0, fmt.Errorf("guest %d lost group pointer during issue", guest.ID)
		}
		var winner models.FamilyGroup
		if err := lockForUpdate(tx).First(&winner, *guest.FamilyGroupID).Error; err != nil {
			return 0, err
		}
		var count int64
		if err := tx.Model(&models.Guest{}).Where("family_group_id = ?", *guest.FamilyGroupID).Count(&count).Error; err != nil {
			return 0, err
		}
		if count >= models.MaxGroupMembers {
			return 0, ErrGroupFull
		}
		return *guest.FamilyGroupID, nil
	}

	guest.FamilyGroupID = &group.ID
	return group.ID, nil
}

// Accept consumes a pending invite and joins the acting guest to the
// invite's group. Capacity is re-checked here under the group row lock:
// concurrent acceptors hold disjoint invite and guest rows, so the
// group row is the serialization point that makes the count trustworthy.
func (s *FamilyService) Accept(token string, guestID uint) (uint, error) {
	var (
		groupID   uint
		inviterID uint
		lazyErr   error
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		invite, guest, err := loadPendingInvite(tx, token, guestID)
		if err != nil {
			return err
		}

		if invite.InviteeTelegramUserID != nil && *invite.InviteeTelegramUserID != guest.TelegramUserID {
			return ErrForbidden
		}

		now := time.Now().UTC()
		if invite.Expired(now) {
			// Lazy expiry: the decline transition must commit even
			// though the caller sees an error.
			lazyErr = ErrExpired
			return tx.Model(invite).Updates(map[string]interface{}{
				"status":      models.InviteStatusDeclined,
				"declined_at": now,
			}).Error
		}

		if guest.FamilyGroupID != nil && *guest.FamilyGroupID != invite.FamilyGroupID {
			return ErrConflict
		}

		var group models.FamilyGroup
		if err := lockForUpdate(tx).First(&group, invite.FamilyGroupID).Error; err != nil {
			return err
		}

		var others int64
		if err := tx.Model(&models.Guest{}).
			Where("family_group_id = ? AND id <> ?", invite.FamilyGroupID, guest.ID).
			Count(&others).Error; err != nil {
			return err
		}
		if others >= models.MaxGroupMembers {
			return ErrGroupFull
		}

		if err := tx.Model(&models.Guest{}).Where("id = ?", guest.ID).
			Update("family_group_id", invite.FamilyGroupID).Error; err != nil {
			return err
		}
		if err := tx.Model(invite).Updates(map[string]interface{}{
			"status":           models.InviteStatusAccepted,
			"accepted_at":      now,
			"used_by_guest_id": guest.ID,
		}).Error; err != nil {
			return err
		}

		groupID = invite.FamilyGroupID
		inviterID = invite.InviterGuestID
		return nil
	})
	if err != nil {
		return 0, err
	}
	if lazyErr != nil {
		return 0, lazyErr
	}

	s.notifyGuest(inviterID, "Ваше приглашение в семейную группу принято 🎉")
	return groupID, nil
}

// Decline marks a pending invite declined. Only the hinted invitee may
// decline a targeted invite; link-sharing invites may be declined by
// whoever presents the token.
func (s *FamilyService) Decline(token string, guestID uint) error {
	var (
		inviterID uint
		lazyErr   error
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		invite, guest, err := loadPendingInvite(tx, token, guestID)
		if err != nil {
			return err
		}

		if invite.InviteeTelegramUserID != nil && *invite.InviteeTelegramUserID != guest.TelegramUserID {
			return ErrForbidden
		}

		now := time.Now().UTC()
		if invite.Expired(now) {
			lazyErr = ErrExpired
		}
		inviterID = invite.InviterGuestID
		return tx.Model(invite).Updates(map[string]interface{}{
			"status":      models.InviteStatusDeclined,
			"declined_at": now,
		}).Error
	})
	if err != nil {
		return err
	}
	if lazyErr != nil {
		return lazyErr
	}

	s.notifyGuest(inviterID, "Ваше приглашение в семейную группу отклонено.")
	return nil
}

// Cancel voids a pending invite. The original inviter may cancel, and
// so may the hinted invitee (symmetric cancel).
func (s *FamilyService) Cancel(token string, guestID uint) error {
	var notifyGuestID *uint
	var notifyTelegramID *int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		invite, guest, err := loadPendingInvite(tx, token, guestID)
		if err != nil {
			return err
		}

		isInviter := invite.InviterGuestID == guest.ID
		isInvitee := invite.InviteeTelegramUserID != nil && *invite.InviteeTelegramUserID == guest.TelegramUserID
		if !isInviter && !isInvitee {
			return ErrForbidden
		}

		if isInviter {
			notifyTelegramID = invite.InviteeTelegramUserID
		} else {
			notifyGuestID = &invite.InviterGuestID
		}
		return tx.Model(invite).Updates(map[string]interface{}{
			"status":      models.InviteStatusCanceled,
			"canceled_at": time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return err
	}

	const text = "Приглашение в семейную группу отменено."
	if notifyGuestID != nil {
		s.notifyGuest(*notifyGuestID, text)
	} else if notifyTelegramID != nil {
		s.notifyTelegramID(*notifyTelegramID, text)
	}
	return nil
}

// InviteInfo is the public, token-only view of an invite.
type InviteInfo struct {
	InviterName   string `json:"inviter_name"`
	FamilyGroupID uint   `json:"family_group_id"`
	Used          bool   `json:"used"`
	Status        string `json:"status"`
}

func (s *FamilyService) InviteInfo(token string) (*InviteInfo, error) {
	var invite models.InviteToken
	err := s.db.Where("token = ?", token).First(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var inviter models.Guest
	if err := s.db.First(&inviter, invite.InviterGuestID).Error; err != nil {
		return nil, err
	}
	var profile models.Profile
	s.db.Where("guest_id = ?", inviter.ID).First(&profile)

	return &InviteInfo{
		InviterName:   inviter.DisplayName(&profile),
		FamilyGroupID: invite.FamilyGroupID,
		Used:          invite.UsedByGuestID != nil,
		Status:        invite.Status,
	}, nil
}

// Incoming returns the most recently created pending, unexpired invite
// targeting the guest, or nil when there is none.
func (s *FamilyService) Incoming(guestID uint) (*models.InviteToken, error) {
	var guest models.Guest
	if err := s.db.First(&guest, guestID).Error; err != nil {
		return nil, err
	}

	var invite models.InviteToken
	err := s.db.
		Where("invitee_telegram_user_id = ? AND status = ? AND expires_at > ?",
			guest.TelegramUserID, models.InviteStatusPending, time.Now().UTC()).
		Order("created_at DESC").
		First(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

type FamilyMember struct {
	GuestID        uint   `json:"guest_id"`
	TelegramUserID int64  `json:"telegram_user_id"`
	Name           string `json:"name"`
	RSVP           string `json:"rsvp"`
}

type FamilyStatus struct {
	FamilyGroupID *uint          `json:"family_group_id"`
	Members       []FamilyMember `json:"members"`
}

func (s *FamilyService) Status(guestID uint) (*FamilyStatus, error) {
	var guest models.Guest
	if err := s.db.First(&guest, guestID).Error; err != nil {
		return nil, err
	}
	if guest.FamilyGroupID == nil {
		return &FamilyStatus{Members: []FamilyMember{}}, nil
	}

	var members []models.Guest
	if err := s.db.Where("family_group_id = ?", *guest.FamilyGroupID).Order("id").Find(&members).Error; err != nil {
		return nil, err
	}

	status := &FamilyStatus{FamilyGroupID: guest.FamilyGroupID, Members: make([]FamilyMember, 0, len(members))}
	for i := range members {
		m := &members[i]
		var profile models.Profile
		s.db.Where("guest_id = ?", m.ID).First(&profile)
		status.Members = append(status.Members, FamilyMember{
			GuestID:        m.ID,
			TelegramUserID: m.TelegramUserID,
			Name:           m.DisplayName(&profile),
			RSVP:           profile.RSVPStatus,
		})
	}
	return status, nil
}

// Leave removes the acting guest from their group. Pending invites for
// the group are canceled and the group is deleted once it drops to one
// or zero members, clearing the last member's pointer too.
func (s *FamilyService) Leave(guestID uint) error {
	var remaining *models.Guest
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var guest models.Guest
		if err := lockForUpdate(tx).First(&guest, guestID).Error; err != nil {
			return err
		}
		if guest.FamilyGroupID == nil {
			return nil
		}
		groupID := *guest.FamilyGroupID

		if err := tx.Model(&models.Guest{}).Where("id = ?", guest.ID).
			Update("family_group_id", nil).Error; err != nil {
			return err
		}
		if err := cancelPendingInvites(tx, groupID); err != nil {
			return err
		}

		var members []models.Guest
		if err := tx.Where("family_group_id = ?", groupID).Find(&members).Error; err != nil {
			return err
		}
		if len(members) <= 1 {
			if len(members) == 1 {
				remaining = &members[0]
			}
			if err := dissolveGroup(tx, groupID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if remaining != nil {
		s.notifyTelegramID(remaining.TelegramUserID, "Ваш партнёр покинул семейную группу.")
	}
	return nil
}

// RemovePartner dissolves a two-member group entirely, no matter which
// member invoked it. With a lone member it just clears the pointer and
// removes the group.
func (s *FamilyService) RemovePartner(guestID uint, partnerTelegramUserID *int64) error {
	var removed *models.Guest
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var guest models.Guest
		if err := lockForUpdate(tx).First(&guest, guestID).Error; err != nil {
			return err
		}
		if guest.FamilyGroupID == nil {
			return nil
		}
		groupID := *guest.FamilyGroupID

		var members []models.Guest
		if err := lockForUpdate(tx).Where("family_group_id = ?", groupID).Order("id").Find(&members).Error; err != nil {
			return err
		}

		if len(members) > 1 {
			partner, err := resolvePartner(members, &guest, partnerTelegramUserID)
			if err != nil {
				return err
			}
			removed = partner
		}

		if err := cancelPendingInvites(tx, groupID); err != nil {
			return err
		}
		return dissolveGroup(tx, groupID)
	})
	if err != nil {
		return err
	}

	if removed != nil {
		s.notifyTelegramID(removed.TelegramUserID, "Вас исключили из семейной группы.")
	}
	return nil
}

func resolvePartner(members []models.Guest, acting *models.Guest, hint *int64) (*models.Guest, error) {
	if hint != nil {
		for i := range members {
			if members[i].TelegramUserID == *hint {
				if members[i].ID == acting.ID {
					return nil, ErrInvalidOperation
				}
				return &members[i], nil
			}
		}
		return nil, ErrNotFound
	}
	for i := range members {
		if members[i].ID != acting.ID {
			return &members[i], nil
		}
	}
	return nil, ErrInvalidOperation
}

// loadPendingInvite fetches the invite under lock plus the acting
// guest, enforcing the NotFound/InvalidState checks shared by all
// transitions.
func loadPendingInvite(tx *gorm.DB, token string, guestID uint) (*models.InviteToken, *models.Guest, error) {
	var invite models.InviteToken
	err := lockForUpdate(tx).Where("token = ?", token).First(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if invite.Status != models.InviteStatusPending {
		return nil, nil, ErrInvalidState
	}

	var guest models.Guest
	if err := lockForUpdate(tx).First(&guest, guestID).Error; err != nil {
		return nil, nil, err
	}
	return &invite, &guest, nil
}

func cancelPendingInvites(tx *gorm.DB, groupID uint) error {
	return tx.Model(&models.InviteToken{}).
		Where("family_group_id = ? AND status = ?", groupID, models.InviteStatusPending).
		Updates(map[string]interface{}{
			"status":      models.InviteStatusCanceled,
			"canceled_at": time.Now().UTC(),
		}).Error
}

// dissolveGroup clears every member pointer and deletes the group row.
func dissolveGroup(tx *gorm.DB, groupID uint) error {
	if err := tx.Model(&models.Guest{}).Where("family_group_id = ?", groupID).
		Update("family_group_id", nil).Error; err != nil {
		return err
	}
	return tx.Delete(&models.FamilyGroup{}, groupID).Error
}

func (s *FamilyService) notifyGuest(guestID uint, text string) {
	var guest models.Guest
	if err := s.db.First(&guest, guestID).Error; err != nil {
		log.Printf("[Notify] cannot load guest %d: %v", guestID, err)
		return
	}
	s.notifyTelegramID(guest.TelegramUserID, text)
}

func (s *FamilyService) notifyTelegramID(telegramUserID int64, text string) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, telegramUserID, text); err != nil {
		log.Printf("[Notify] delivery to %d failed: %v", telegramUserID, err)
	}
}
