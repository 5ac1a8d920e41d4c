package database

import (
	"fmt"
	"log"

	"weddingtg/models"
)

func Migrate() {
	err := DB.AutoMigrate(
		&models.Guest{},
		&models.Profile{},
		&models.FamilyGroup{},
		&models.InviteToken{},
		&models.FamilyProfile{},
		&models.EventInfo{},
		&models.AppSettings{},
		&models.ChangeLog{},
		&models.SheetSyncJob{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	fmt.Println("Migrations completed")
}
