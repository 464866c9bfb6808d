package database

import (
	"fmt"

	"github.com/cloudvault/backend/internal/config"
	"github.com/cloudvault/backend/internal/models"
	"github.com/cloudvault/backend/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// SeedSuperadminQuotaGB is the distinguished quota of the bootstrap account.
const SeedSuperadminQuotaGB = 1000

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	if err := SeedSuperadmin(db); err != nil {
		return nil, err
	}

	return db, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}); err != nil {
		return err
	}

	// One non-deleted user per email; soft-deleted rows release the address.
	index := `
CREATE UNIQUE INDEX IF NOT EXISTS users_email_active_key
ON users (email)
WHERE deleted_at IS NULL;`

	return db.Exec(index).Error
}

// SeedSuperadmin inserts the bootstrap superadmin when the table is empty.
func SeedSuperadmin(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	hash, err := utils.HashPassword("superadmin123")
	if err != nil {
		return err
	}

	superadmin := models.User{
		Name:           "Super Admin",
		Email:          "superadmin@cloudvault.local",
		PasswordHash:   hash,
		Role:           models.UserRoleSuperadmin,
		StorageQuotaGB: SeedSuperadminQuotaGB,
	}

	return db.Create(&superadmin).Error
}
