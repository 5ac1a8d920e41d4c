package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"weddingtg/config"
	"weddingtg/database"
	"weddingtg/middleware"
	"weddingtg/models"
	"weddingtg/services"
)

type QuestionsHandler struct {
	cfg      *config.Config
	notifier services.Notifier
}

func NewQuestionsHandler(cfg *config.Config, notifier services.Notifier) *QuestionsHandler {
	return &QuestionsHandler{cfg: cfg, notifier: notifier}
}

type questionRequest struct {
	Text string `json:"text" binding:"required"`
}

// Send relays a free-text guest question to every admin. Per-admin
// delivery failures are swallowed.
func (h *QuestionsHandler) Send(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty question"})
		return
	}

	var guest models.Guest
	if err := database.DB.First(&guest, middleware.GuestID(c)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Guest not found"})
		return
	}

	name := guest.DisplayName(nil)
	if name == "" {
		name = "Гость"
	}
	sender := name
	if guest.Username != nil && *guest.Username != "" {
		sender += " @" + *guest.Username
	}

	message := fmt.Sprintf("<b>Вопрос от гостя</b>\n%s\n\nОтправитель: %s\nID: %d\nСсылка: %s",
		strings.TrimSpace(req.Text), sender, guest.TelegramUserID, senderLink(&guest))

	go services.NotifyAdmins(h.notifier, h.cfg.AdminIDs, message)

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func senderLink(guest *models.Guest) string {
	if guest.Username != nil && *guest.Username != "" {
		return "https://t.me/" + *guest.Username
	}
	return fmt.Sprintf("tg://user?id=%d", guest.TelegramUserID)
}
