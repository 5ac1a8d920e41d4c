package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"weddingtg/config"
	"weddingtg/database"
	"weddingtg/middleware"
	"weddingtg/models"
	"weddingtg/services"
)

type FamilyHandler struct {
	cfg    *config.Config
	family *services.FamilyService
}

func NewFamilyHandler(cfg *config.Config, family *services.FamilyService) *FamilyHandler {
	return &FamilyHandler{cfg: cfg, family: family}
}

// familyError maps the service error taxonomy onto HTTP statuses.
func familyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Invite not found"})
	case errors.Is(err, services.ErrInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invite is no longer pending"})
	case errors.Is(err, services.ErrExpired):
		c.JSON(http.StatusGone, gin.H{"error": "Invite expired"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "This invite is for someone else"})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Already in another family"})
	case errors.Is(err, services.ErrGroupFull):
		c.JSON(http.StatusConflict, gin.H{"error": "Family group is full"})
	case errors.Is(err, services.ErrInvalidOperation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid operation"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

type inviteRequest struct {
	InviteeTelegramUserID *int64 `json:"invitee_telegram_user_id"`
}

func (h *FamilyHandler) Invite(c *gin.Context) {
	var req inviteRequest
	// Body optional: no hint means link-sharing invite. A garbled body
	// is still an error, only an absent one is not.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, err := h.family.Issue(middleware.GuestID(c), req.InviteeTelegramUserID)
	if err != nil {
		familyError(c, err)
		return
	}

	resp := gin.H{"token": token}
	if h.cfg.BotUsername != "" {
		resp["link"] = "https://t.me/" + h.cfg.BotUsername + "?startapp=invite_" + token
	}
	c.JSON(http.StatusCreated, resp)
}

type acceptRequest struct {
	Token string `json:"token" binding:"required"`
}

// AcceptLegacy is the body-based accept kept for older WebApp builds.
// It runs the exact same status-machine transition as Accept.
func (h *FamilyHandler) AcceptLegacy(c *gin.Context) {
	var req acceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	h.accept(c, req.Token)
}

func (h *FamilyHandler) Accept(c *gin.Context) {
	h.accept(c, c.Param("token"))
}

func (h *FamilyHandler) accept(c *gin.Context, token string) {
	groupID, err := h.family.Accept(token, middleware.GuestID(c))
	if err != nil {
		familyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "family_group_id": groupID})
}

func (h *FamilyHandler) Decline(c *gin.Context) {
	if err := h.family.Decline(c.Param("token"), middleware.GuestID(c)); err != nil {
		familyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *FamilyHandler) Cancel(c *gin.Context) {
	if err := h.family.Cancel(c.Param("token"), middleware.GuestID(c)); err != nil {
		familyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Info is public: anyone holding the token may look up who sent it.
func (h *FamilyHandler) Info(c *gin.Context) {
	info, err := h.family.InviteInfo(c.Param("token"))
	if err != nil {
		familyError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *FamilyHandler) Incoming(c *gin.Context) {
	invite, err := h.family.Incoming(middleware.GuestID(c))
	if err != nil {
		familyError(c, err)
		return
	}
	if invite == nil {
		c.JSON(http.StatusOK, gin.H{"invite": nil})
		return
	}

	info, err := h.family.InviteInfo(invite.Token)
	if err != nil {
		familyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invite": gin.H{
		"token":        invite.Token,
		"inviter_name": info.InviterName,
		"created_at":   invite.CreatedAt,
		"expires_at":   invite.ExpiresAt,
	}})
}

func (h *FamilyHandler) Status(c *gin.Context) {
	status, err := h.family.Status(middleware.GuestID(c))
	if err != nil {
		familyError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *FamilyHandler) Leave(c *gin.Context) {
	if err := h.family.Leave(middleware.GuestID(c)); err != nil {
		familyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type removePartnerRequest struct {
	PartnerTelegramUserID *int64 `json:"partner_telegram_user_id"`
}

func (h *FamilyHandler) RemovePartner(c *gin.Context) {
	var req removePartnerRequest
	// Body optional: without a hint the other member is implied.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.family.RemovePartner(middleware.GuestID(c), req.PartnerTelegramUserID); err != nil {
		familyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type familyProfileRequest struct {
	WithPartner bool           `json:"with_partner"`
	PartnerName *string        `json:"partner_name"`
	Children    []models.Child `json:"children" binding:"max=10,dive"`
}

func (h *FamilyHandler) GetFamilyProfile(c *gin.Context) {
	var fp models.FamilyProfile
	err := database.DB.Where("guest_id = ?", middleware.GuestID(c)).First(&fp).Error
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"family_profile": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"family_profile": fp})
}

func (h *FamilyHandler) SaveFamilyProfile(c *gin.Context) {
	var req familyProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	guestID := middleware.GuestID(c)
	var fp models.FamilyProfile
	if err := database.DB.Where("guest_id = ?", guestID).First(&fp).Error; err != nil {
		fp = models.FamilyProfile{GuestID: guestID}
	}
	fp.WithPartner = req.WithPartner
	fp.PartnerName = req.PartnerName
	fp.Children = req.Children

	if err := database.DB.Save(&fp).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save family profile"})
		return
	}

	tgID := middleware.TelegramUserID(c)
	services.EnqueueSheetSync(database.DB, &tgID, "family_profile")

	c.JSON(http.StatusOK, gin.H{"family_profile": fp})
}
