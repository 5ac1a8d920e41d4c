package middleware

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"weddingtg/config"
	"weddingtg/services"
	"weddingtg/utils"
)

// Identity establishes the acting guest from one of the accepted
// proofs, in order: a session JWT, a signed Telegram launch payload,
// a still-valid invite token (resolving to the inviter's identity), or
// the bot's internal-secret path. Sets guest_id and telegram_user_id
// on the context; aborts 401 when no proof is usable.
func Identity(cfg *config.Config, identity *services.IdentityService, lockout *services.Lockout) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			claims, err := utils.ParseToken(cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
			if err == nil {
				c.Set("guest_id", claims.GuestID)
				c.Set("telegram_user_id", claims.TelegramUserID)
				c.Next()
				return
			}
		}

		if initData := c.GetHeader("X-Tg-Initdata"); initData != "" || cfg.AllowDevAuth {
			user, err := services.VerifyInitData(cfg, initData)
			if err == nil {
				guest, err := identity.ResolveOrCreate(user)
				if err != nil {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve guest"})
					return
				}
				c.Set("guest_id", guest.ID)
				c.Set("telegram_user_id", guest.TelegramUserID)
				c.Next()
				return
			}
			if c.GetHeader("X-Invite-Token") == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid init data"})
				return
			}
		}

		if token := c.GetHeader("X-Invite-Token"); token != "" {
			key := "invite:" + c.ClientIP()
			if locked, remaining := lockout.IsLocked(c.Request.Context(), key); locked {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
					"error":               "Too many attempts, please try again later",
					"retry_after_seconds": remaining,
				})
				return
			}

			guest, err := identity.GuestFromInviteToken(token)
			if err != nil {
				lockout.RecordFailure(c.Request.Context(), key)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid invite token"})
				return
			}
			lockout.RecordSuccess(c.Request.Context(), key)
			c.Set("guest_id", guest.ID)
			c.Set("telegram_user_id", guest.TelegramUserID)
			c.Next()
			return
		}

		if secret := c.GetHeader("X-Internal-Secret"); secret != "" {
			if subtle.ConstantTimeCompare([]byte(secret), []byte(cfg.InternalSecret)) != 1 {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid internal secret"})
				return
			}
			tgID, err := strconv.ParseInt(c.Query("telegram_user_id"), 10, 64)
			if err != nil || tgID == 0 {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "telegram_user_id required"})
				return
			}
			guest, err := identity.ResolveByTelegramID(tgID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve guest"})
				return
			}
			c.Set("guest_id", guest.ID)
			c.Set("telegram_user_id", guest.TelegramUserID)
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing auth"})
	}
}

// AdminRequired gates admin routes on the Telegram id allowlist. Must
// run after Identity.
func AdminRequired(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tgID, ok := c.Get("telegram_user_id")
		if !ok || !cfg.IsAdmin(tgID.(int64)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin only"})
			return
		}
		c.Next()
	}
}

// GuestID reads the acting guest id set by Identity.
func GuestID(c *gin.Context) uint {
	v, _ := c.Get("guest_id")
	id, _ := v.(uint)
	return id
}

// TelegramUserID reads the acting Telegram user id set by Identity.
func TelegramUserID(c *gin.Context) int64 {
	v, _ := c.Get("telegram_user_id")
	id, _ := v.(int64)
	return id
}
