package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"weddingtg/config"
	"weddingtg/database"
	"weddingtg/services"
)

type EventHandler struct {
	cfg *config.Config
}

func NewEventHandler(cfg *config.Config) *EventHandler {
	return &EventHandler{cfg: cfg}
}

// Get returns the event page content, seeding the default row on first
// access.
func (h *EventHandler) Get(c *gin.Context) {
	info, err := services.GetOrSeedEvent(database.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load event info"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"content":      info.Content,
		"updated_at":   info.UpdatedAt,
		"wedding_date": h.cfg.WeddingDate,
	})
}
