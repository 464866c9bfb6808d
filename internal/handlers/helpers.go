package handlers

import (
	"strings"

	"github.com/cloudvault/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// emailTaken reports whether a non-deleted user other than excludeID already
// holds the email. Soft-deleted rows never count, so their addresses are
// reusable.
func emailTaken(db *gorm.DB, email string, excludeID *uuid.UUID) (bool, error) {
	query := db.Model(&models.User{}).Where("email = ?", email)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
