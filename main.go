package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"weddingtg/config"
	"weddingtg/database"
	"weddingtg/handlers"
	"weddingtg/middleware"
	"weddingtg/services"
)

func main() {
	cfg := config.Load()

	// Database
	database.Connect(cfg)
	database.Migrate()
	database.ConnectRedis(cfg)

	// Services
	notifier := buildNotifier(cfg)
	identity := services.NewIdentityService(database.DB)
	family := services.NewFamilyService(database.DB, notifier)
	partner := services.NewPartnerService(database.DB)
	audit := services.NewAudit(database.RDB)
	lockout := services.NewLockout(database.RDB)

	startSheetWorker(cfg)

	// Handlers
	authHandler := handlers.NewAuthHandler(cfg, identity)
	profileHandler := handlers.NewProfileHandler(cfg, audit, partner, notifier)
	familyHandler := handlers.NewFamilyHandler(cfg, family)
	eventHandler := handlers.NewEventHandler(cfg)
	adminHandler := handlers.NewAdminHandler(cfg, audit, notifier)
	questionsHandler := handlers.NewQuestionsHandler(cfg, notifier)
	eventsWS := handlers.NewAdminEventsHandler(cfg)

	// Router
	r := gin.Default()
	r.Use(middleware.CORS(cfg))
	r.Use(middleware.SecurityHeaders())

	authLimiter := middleware.NewRateLimiter(20, 1*time.Minute)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	// Public routes
	public := r.Group("/api")
	public.Use(authLimiter.Middleware())
	{
		public.POST("/auth/telegram", authHandler.Telegram)
		public.GET("/event", eventHandler.Get)
		public.GET("/family/invite/:token", familyHandler.Info)
	}

	// Guest routes (JWT, initData, invite token or internal secret)
	api := r.Group("/api")
	api.Use(middleware.Identity(cfg, identity, lockout))
	{
		api.GET("/profile", profileHandler.Get)
		api.POST("/profile", profileHandler.Upsert)
		api.POST("/extra", profileHandler.SaveExtra)
		api.POST("/partner/link", profileHandler.LinkPartner)

		api.POST("/family/invite", familyHandler.Invite)
		api.POST("/family/accept", familyHandler.AcceptLegacy)
		api.POST("/family/invite/:token/accept", familyHandler.Accept)
		api.POST("/family/invite/:token/decline", familyHandler.Decline)
		api.POST("/family/invite/:token/cancel", familyHandler.Cancel)
		api.GET("/family/incoming", familyHandler.Incoming)
		api.GET("/family/status", familyHandler.Status)
		api.POST("/family/leave", familyHandler.Leave)
		api.POST("/family/remove-partner", familyHandler.RemovePartner)
		api.GET("/family/profile", familyHandler.GetFamilyProfile)
		api.POST("/family/profile", familyHandler.SaveFamilyProfile)

		api.POST("/questions", questionsHandler.Send)
	}

	// Admin routes
	admin := r.Group("/api/admin")
	admin.Use(middleware.Identity(cfg, identity, lockout), middleware.AdminRequired(cfg))
	{
		admin.GET("/guests", adminHandler.ListGuests)
		admin.POST("/event", adminHandler.UpdateEvent)
		admin.POST("/broadcast", adminHandler.Broadcast)
		admin.POST("/sheets/sync", adminHandler.SyncSheets)
	}

	// WebSocket (auth via query param)
	r.GET("/ws/admin/events", eventsWS.HandleWebSocket)

	fmt.Printf("Server starting on :%s\n", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func buildNotifier(cfg *config.Config) services.Notifier {
	if cfg.BotToken == "" {
		log.Printf("BOT_TOKEN not set, notifications disabled")
		return services.NopNotifier{}
	}
	notifier, err := services.NewBotNotifier(cfg.BotToken)
	if err != nil {
		log.Printf("Bot API unavailable, notifications disabled: %v", err)
		return services.NopNotifier{}
	}
	return notifier
}

func startSheetWorker(cfg *config.Config) {
	if cfg.SheetsSpreadsheetID == "" || cfg.SheetsCredentialsFile == "" {
		log.Printf("Sheets mirror not configured, worker disabled")
		return
	}
	uploader, err := services.NewGoogleSheetUploader(context.Background(),
		cfg.SheetsCredentialsFile, cfg.SheetsSpreadsheetID, cfg.SheetsSheetName)
	if err != nil {
		log.Printf("Sheets uploader init failed, worker disabled: %v", err)
		return
	}
	worker := services.NewSheetSyncWorker(database.DB, uploader)
	go worker.Run(context.Background())
}
