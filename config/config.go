package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	BotToken    string
	BotUsername string
	AdminIDs    []int64
	WeddingDate string
	WebAppURL   string

	InternalSecret string
	AllowDevAuth   bool
	DevUserID      int64

	JWTSecret string
	JWTExpiry time.Duration

	RedisURL       string
	AllowedOrigins []string

	SheetsSpreadsheetID   string
	SheetsSheetName       string
	SheetsCredentialsFile string
}

func Load() *Config {
	godotenv.Load()
	godotenv.Load("../.env")

	return &Config{
		Port: getEnv("PORT", "8000"),

		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "wedding"),
		DBPassword: getEnv("DB_PASSWORD", "wedding"),
		DBName:     getEnv("DB_NAME", "wedding"),
		SQLitePath: getEnv("SQLITE_PATH", "./data/app.db"),

		BotToken:    getEnv("BOT_TOKEN", ""),
		BotUsername: getEnv("BOT_USERNAME", ""),
		AdminIDs:    parseAdminIDs(getEnv("ADMIN_IDS", "")),
		WeddingDate: getEnv("WEDDING_DATE", "2026-07-25T16:00:00+03:00"),
		WebAppURL:   getEnv("WEBAPP_URL", "https://example.com"),

		InternalSecret: getEnv("INTERNAL_SECRET", "change_me"),
		AllowDevAuth:   getEnv("ALLOW_DEV_AUTH", "") == "true",
		DevUserID:      parseInt64(getEnv("DEV_USER_ID", "1")),

		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-production"),
		JWTExpiry: parseDuration(getEnv("JWT_EXPIRY", "24h")),

		RedisURL:       getEnv("REDIS_URL", ""),
		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8000")),

		SheetsSpreadsheetID:   getEnv("SHEETS_SPREADSHEET_ID", ""),
		SheetsSheetName:       getEnv("SHEETS_SHEET_NAME", "Guest TG"),
		SheetsCredentialsFile: getEnv("GOOGLE_SA_JSON_PATH", ""),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=disable TimeZone=UTC"
}

// UsePostgres reports whether a postgres host is configured.
// Without one the server falls back to a local sqlite file.
func (c *Config) UsePostgres() bool {
	return c.DBHost != ""
}

func (c *Config) IsAdmin(telegramUserID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramUserID {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

func parseInt64(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseAdminIDs(s string) []int64 {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if id, err := strconv.ParseInt(p, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func parseOrigins(s string) []string {
	parts := strings.Split(s, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
