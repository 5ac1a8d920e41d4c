package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"weddingtg/config"
	"weddingtg/services"
	"weddingtg/utils"
)

type AuthHandler struct {
	cfg      *config.Config
	identity *services.IdentityService
}

func NewAuthHandler(cfg *config.Config, identity *services.IdentityService) *AuthHandler {
	return &AuthHandler{cfg: cfg, identity: identity}
}

type telegramAuthRequest struct {
	InitData string `json:"init_data" binding:"required"`
}

// Telegram verifies a Mini App launch payload, lazily creating the
// guest, and mints a session token for subsequent requests.
func (h *AuthHandler) Telegram(c *gin.Context) {
	var req telegramAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, err := services.VerifyInitData(h.cfg, req.InitData)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid init data"})
		return
	}

	guest, err := h.identity.ResolveOrCreate(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve guest"})
		return
	}

	token, err := utils.GenerateAccessToken(h.cfg.JWTSecret, guest.ID, guest.TelegramUserID, h.cfg.JWTExpiry)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"telegram_user_id": guest.TelegramUserID,
		"first_name":       guest.FirstName,
		"last_name":        guest.LastName,
		"username":         guest.Username,
		"is_admin":         h.cfg.IsAdmin(guest.TelegramUserID),
		"access_token":     token,
	})
}
