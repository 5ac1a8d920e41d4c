package handlers

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"weddingtg/config"
	"weddingtg/database"
	"weddingtg/services"
	"weddingtg/utils"
)

type AdminEventsHandler struct {
	cfg      *config.Config
	upgrader websocket.Upgrader
}

func NewAdminEventsHandler(cfg *config.Config) *AdminEventsHandler {
	return &AdminEventsHandler{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkWSOrigin(cfg.AllowedOrigins),
		},
	}
}

// checkWSOrigin validates the Origin header against allowed origins.
// Non-browser clients without an Origin header are allowed.
func checkWSOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if u, err := url.Parse(o); err == nil {
			allowed[u.Host] = true
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return allowed[u.Host]
	}
}

// HandleWebSocket streams the admin change feed (profile edits, event
// updates) over a WebSocket, fed by redis pub/sub. Auth is a session
// token in the query string; only allowlisted admins may subscribe.
func (h *AdminEventsHandler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
		return
	}

	claims, err := utils.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}
	if !h.cfg.IsAdmin(claims.TelegramUserID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin only"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[Events] WS upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if database.RDB == nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "event feed unavailable"))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := database.RDB.Subscribe(ctx, services.AdminEventsChannel)
	defer pubsub.Close()

	// Ping/pong keepalive
	conn.SetReadDeadline(time.Now().Add(45 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(45 * time.Second))
		return nil
	})

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					cancel()
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Keep the read loop alive to detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
