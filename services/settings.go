package services

import (
	"errors"

	"gorm.io/gorm"

	"weddingtg/models"
)

// Default app settings seeded on first read.
var defaultSettings = map[string]string{
	"registration_open": "true",
	"questions_open":    "true",
}

// GetOrSeedEvent returns the event info row, creating it with default
// content on first access. All read-or-create-with-default paths go
// through here and GetOrSeedSetting rather than ad-hoc handler code.
func GetOrSeedEvent(db *gorm.DB) (*models.EventInfo, error) {
	var info models.EventInfo
	err := db.First(&info).Error
	if err == nil {
		return &info, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	info = models.EventInfo{Content: models.DefaultEventContent}
	if err := db.Create(&info).Error; err != nil {
		return nil, err
	}
	return &info, nil
}

// GetOrSeedSetting reads a settings key, seeding it from the default
// table (or the supplied fallback) when absent.
func GetOrSeedSetting(db *gorm.DB, key, fallback string) (string, error) {
	var row models.AppSettings
	err := db.Where("key = ?", key).First(&row).Error
	if err == nil {
		return row.Value, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	value := fallback
	if def, ok := defaultSettings[key]; ok && fallback == "" {
		value = def
	}
	row = models.AppSettings{Key: key, Value: value}
	if err := db.Create(&row).Error; err != nil {
		return "", err
	}
	return row.Value, nil
}

// SetSetting upserts a settings key.
func SetSetting(db *gorm.DB, key, value string) error {
	res := db.Model(&models.AppSettings{}).Where("key = ?", key).Update("value", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.Create(&models.AppSettings{Key: key, Value: value}).Error
	}
	return nil
}
