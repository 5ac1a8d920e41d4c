package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"weddingtg/config"
)

var DB *gorm.DB

func Connect(cfg *config.Config) {
	var (
		db  *gorm.DB
		err error
	)

	// TranslateError lets callers match unique-constraint violations
	// via gorm.ErrDuplicatedKey across both drivers.
	opts := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	if cfg.UsePostgres() {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), opts)
	} else {
		os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
		db, err = gorm.Open(sqlite.Open(cfg.SQLitePath), opts)
	}
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	DB = db
	fmt.Println("Database connected")
}
