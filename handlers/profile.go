package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"weddingtg/config"
	"weddingtg/database"
	"weddingtg/middleware"
	"weddingtg/models"
	"weddingtg/services"
)

type ProfileHandler struct {
	cfg      *config.Config
	audit    *services.Audit
	partner  *services.PartnerService
	notifier services.Notifier
}

func NewProfileHandler(cfg *config.Config, audit *services.Audit, partner *services.PartnerService, notifier services.Notifier) *ProfileHandler {
	return &ProfileHandler{cfg: cfg, audit: audit, partner: partner, notifier: notifier}
}

type profileRequest struct {
	RSVPStatus string `json:"rsvp_status" binding:"required,oneof=yes no maybe"`

	FullName   *string `json:"full_name"`
	BirthDate  *string `json:"birth_date"` // YYYY-MM-DD
	Gender     *string `json:"gender" binding:"omitempty,oneof=male female other"`
	Phone      *string `json:"phone"`
	Side       *string `json:"side" binding:"omitempty,oneof=groom bride both"`
	IsRelative bool    `json:"is_relative"`

	FoodPref      *string  `json:"food_pref" binding:"omitempty,oneof=fish meat vegan"`
	FoodAllergies *string  `json:"food_allergies"`
	AlcoholPrefs  []string `json:"alcohol_prefs"`
}

type extraRequest struct {
	ExtraKnownSince *string  `json:"extra_known_since" binding:"omitempty,oneof=groom bride both"`
	ExtraMemory     *string  `json:"extra_memory"`
	ExtraFact       *string  `json:"extra_fact"`
	Photos          []string `json:"photos" binding:"max=5"` // telegram file_id values
}

type partnerLinkRequest struct {
	FullName  string `json:"full_name" binding:"required"`
	BirthDate string `json:"birth_date" binding:"required"` // YYYY-MM-DD
}

func (h *ProfileHandler) Get(c *gin.Context) {
	guest, profile, err := loadGuestProfile(middleware.GuestID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Guest not found"})
		return
	}
	c.JSON(http.StatusOK, profileOut(guest, profile))
}

func (h *ProfileHandler) Upsert(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	birthDate, err := parseDate(req.BirthDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid birth_date"})
		return
	}

	guestID := middleware.GuestID(c)
	rsvpChanged := false
	txErr := database.DB.Transaction(func(tx *gorm.DB) error {
		var guest models.Guest
		if err := tx.First(&guest, guestID).Error; err != nil {
			return err
		}
		var p models.Profile
		if err := tx.Where("guest_id = ?", guestID).First(&p).Error; err != nil {
			return err
		}

		rsvpChanged = p.RSVPStatus != req.RSVPStatus
		alcohol := joinCSV(req.AlcoholPrefs)

		changes := []struct {
			field    string
			old, new interface{}
		}{
			{"rsvp_status", p.RSVPStatus, req.RSVPStatus},
			{"full_name", p.FullName, req.FullName},
			{"birth_date", p.BirthDate, birthDate},
			{"gender", p.Gender, req.Gender},
			{"side", p.Side, req.Side},
			{"is_relative", p.IsRelative, req.IsRelative},
			{"food_pref", p.FoodPref, req.FoodPref},
			{"food_allergies", p.FoodAllergies, req.FoodAllergies},
			{"alcohol_prefs", p.AlcoholPrefsCSV, alcohol},
			{"phone", guest.Phone, req.Phone},
		}
		for _, ch := range changes {
			if err := h.audit.RecordChange(tx, guestID, ch.field, ch.old, ch.new); err != nil {
				return err
			}
		}

		p.RSVPStatus = req.RSVPStatus
		p.FullName = req.FullName
		p.BirthDate = birthDate
		p.Gender = req.Gender
		p.Side = req.Side
		p.IsRelative = req.IsRelative
		p.FoodPref = req.FoodPref
		p.FoodAllergies = req.FoodAllergies
		p.AlcoholPrefsCSV = alcohol
		guest.Phone = req.Phone

		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		return tx.Save(&guest).Error
	})
	if txErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save profile"})
		return
	}

	guest, profile, err := loadGuestProfile(guestID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	tgID := guest.TelegramUserID
	services.EnqueueSheetSync(database.DB, &tgID, "profile")
	if rsvpChanged {
		go services.NotifyAdmins(h.notifier, h.cfg.AdminIDs,
			fmt.Sprintf("Гость %s обновил RSVP: %s", guest.DisplayName(profile), profile.RSVPStatus))
	}

	c.JSON(http.StatusOK, profileOut(guest, profile))
}

func (h *ProfileHandler) SaveExtra(c *gin.Context) {
	var req extraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	guestID := middleware.GuestID(c)
	txErr := database.DB.Transaction(func(tx *gorm.DB) error {
		var p models.Profile
		if err := tx.Where("guest_id = ?", guestID).First(&p).Error; err != nil {
			return err
		}

		photos := joinCSV(req.Photos)
		changes := []struct {
			field    string
			old, new interface{}
		}{
			{"extra_known_since", p.ExtraKnownSince, req.ExtraKnownSince},
			{"extra_memory", p.ExtraMemory, req.ExtraMemory},
			{"extra_fact", p.ExtraFact, req.ExtraFact},
			{"photos", p.PhotosCSV, photos},
		}
		for _, ch := range changes {
			if err := h.audit.RecordChange(tx, guestID, ch.field, ch.old, ch.new); err != nil {
				return err
			}
		}

		p.ExtraKnownSince = req.ExtraKnownSince
		p.ExtraMemory = req.ExtraMemory
		p.ExtraFact = req.ExtraFact
		p.PhotosCSV = photos
		return tx.Save(&p).Error
	})
	if txErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save"})
		return
	}

	guest, profile, err := loadGuestProfile(guestID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, profileOut(guest, profile))
}

func (h *ProfileHandler) LinkPartner(c *gin.Context) {
	var req partnerLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid birth_date"})
		return
	}

	guestID := middleware.GuestID(c)
	if _, err := h.partner.LinkByIdentity(guestID, req.FullName, birthDate); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to link partner"})
		return
	}

	guest, profile, err := loadGuestProfile(guestID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, profileOut(guest, profile))
}

func loadGuestProfile(guestID uint) (*models.Guest, *models.Profile, error) {
	var guest models.Guest
	if err := database.DB.First(&guest, guestID).Error; err != nil {
		return nil, nil, err
	}
	var profile models.Profile
	if err := database.DB.Where("guest_id = ?", guestID).First(&profile).Error; err != nil {
		return nil, nil, err
	}
	return &guest, &profile, nil
}

func profileOut(guest *models.Guest, p *models.Profile) gin.H {
	return gin.H{
		"rsvp_status":                p.RSVPStatus,
		"full_name":                  p.FullName,
		"birth_date":                 formatDate(p.BirthDate),
		"gender":                     p.Gender,
		"phone":                      guest.Phone,
		"side":                       p.Side,
		"is_relative":                p.IsRelative,
		"food_pref":                  p.FoodPref,
		"food_allergies":             p.FoodAllergies,
		"alcohol_prefs":              splitCSV(p.AlcoholPrefsCSV),
		"partner_guest_id":           p.PartnerGuestID,
		"partner_pending_full_name":  p.PartnerPendingFullName,
		"partner_pending_birth_date": formatDate(p.PartnerPendingBirthDate),
		"photos":                     splitCSV(p.PhotosCSV),
		"extra_known_since":          p.ExtraKnownSince,
		"extra_memory":               p.ExtraMemory,
		"extra_fact":                 p.ExtraFact,
	}
}

func splitCSV(v *string) []string {
	if v == nil || *v == "" {
		return []string{}
	}
	parts := strings.Split(*v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinCSV(values []string) *string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	s := strings.Join(out, ",")
	return &s
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}
