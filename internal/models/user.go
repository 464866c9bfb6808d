package models

type UserRole string

const (
	UserRoleSuperadmin UserRole = "superadmin"
	UserRoleAdmin      UserRole = "admin"
	UserRoleUser       UserRole = "user"
)

// Level orders roles by privilege: superadmin > admin > user.
// Unknown roles rank below everything.
func (r UserRole) Level() int {
	switch r {
	case UserRoleSuperadmin:
		return 3
	case UserRoleAdmin:
		return 2
	case UserRoleUser:
		return 1
	default:
		return 0
	}
}

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleSuperadmin, UserRoleAdmin, UserRoleUser:
		return true
	default:
		return false
	}
}

type User struct {
	BaseModel
	Name         string   `json:"name" gorm:"type:varchar(200);not null"`
	Email        string   `json:"email" gorm:"type:varchar(255);index;not null"`
	PasswordHash string   `json:"-" gorm:"type:text;not null"`
	Role         UserRole `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	// StorageQuotaGB is the aggregate storage capacity in gigabytes.
	// Always a positive integer.
	StorageQuotaGB int `json:"storageQuotaGB" gorm:"not null;default:1"`
}

// QuotaBytes converts the GB figure to bytes (1 GB = 1024^3 bytes).
func (u *User) QuotaBytes() int64 {
	return int64(u.StorageQuotaGB) * 1024 * 1024 * 1024
}
