package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"weddingtg/config"
	"weddingtg/database"
	"weddingtg/models"
	"weddingtg/services"
)

type AdminHandler struct {
	cfg      *config.Config
	audit    *services.Audit
	notifier services.Notifier
}

func NewAdminHandler(cfg *config.Config, audit *services.Audit, notifier services.Notifier) *AdminHandler {
	return &AdminHandler{cfg: cfg, audit: audit, notifier: notifier}
}

// ListGuests returns every guest with a profile summary for the admin
// dashboard.
func (h *AdminHandler) ListGuests(c *gin.Context) {
	var guests []models.Guest
	if err := database.DB.Order("id").Find(&guests).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load guests"})
		return
	}

	out := make([]gin.H, 0, len(guests))
	for i := range guests {
		g := &guests[i]
		var p models.Profile
		database.DB.Where("guest_id = ?", g.ID).First(&p)
		out = append(out, gin.H{
			"guest_id":         g.ID,
			"telegram_user_id": g.TelegramUserID,
			"name":             g.DisplayName(&p),
			"rsvp":             p.RSVPStatus,
			"side":             p.Side,
			"relative":         p.IsRelative,
			"food":             p.FoodPref,
			"family_group_id":  g.FamilyGroupID,
		})
	}
	c.JSON(http.StatusOK, out)
}

type eventUpdateRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *AdminHandler) UpdateEvent(c *gin.Context) {
	var req eventUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	info, err := services.GetOrSeedEvent(database.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load event info"})
		return
	}
	if err := database.DB.Model(info).Update("content", req.Content).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update event info"})
		return
	}

	h.audit.Publish("event_info_updated", gin.H{"len": len(req.Content)})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type broadcastRequest struct {
	Text     string `json:"text" binding:"required"`
	GroupIDs []uint `json:"group_ids"` // empty => all guests
}

// Broadcast sends a message to every guest, or only to members of the
// named family groups. Per-guest delivery failures are logged and
// skipped.
func (h *AdminHandler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	q := database.DB.Model(&models.Guest{})
	if len(req.GroupIDs) > 0 {
		q = q.Where("family_group_id IN ?", req.GroupIDs)
	}
	var guests []models.Guest
	if err := q.Find(&guests).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load recipients"})
		return
	}

	go func(recipients []models.Guest, text string) {
		sent := 0
		for i := range recipients {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := h.notifier.Notify(ctx, recipients[i].TelegramUserID, text)
			cancel()
			if err != nil {
				log.Printf("[Broadcast] guest %d unreachable: %v", recipients[i].TelegramUserID, err)
				continue
			}
			sent++
		}
		log.Printf("[Broadcast] delivered to %d/%d guests", sent, len(recipients))
	}(guests, req.Text)

	c.JSON(http.StatusAccepted, gin.H{"ok": true, "recipients": len(guests)})
}

// SyncSheets queues a full spreadsheet re-mirror.
func (h *AdminHandler) SyncSheets(c *gin.Context) {
	services.EnqueueSheetSync(database.DB, nil, "admin")
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}
