package handlers

import (
	"net/mail"
	"strings"

	"github.com/cloudvault/backend/internal/authz"
	"github.com/cloudvault/backend/internal/middleware"
	"github.com/cloudvault/backend/internal/models"
	"github.com/cloudvault/backend/pkg/logger"
	"github.com/cloudvault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UsersHandler struct {
	DB *gorm.DB
	// DefaultQuotaGB applies when an admin creates an account without an
	// explicit quota.
	DefaultQuotaGB int
}

func NewUsersHandler(db *gorm.DB, defaultQuotaGB int) *UsersHandler {
	return &UsersHandler{DB: db, DefaultQuotaGB: defaultQuotaGB}
}

func (h *UsersHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if !authz.Allowed(currentUser, authz.OpListUsers) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	p := utils.ParsePagination(c)
	search := strings.TrimSpace(c.Query("search"))

	query := h.DB.Model(&models.User{})
	if search != "" {
		searchValue := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(name) LIKE ?", searchValue, searchValue)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting users")
	}

	var users []models.User
	if err := utils.ApplyPagination(query.Order("created_at DESC"), p).Find(&users).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing users")
	}

	return utils.Paginated(c, users, p.Page, p.Limit, total)
}

func (h *UsersHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if !authz.Allowed(currentUser, authz.OpReadUser) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching user")
	}

	return utils.Success(c, fiber.StatusOK, user)
}

type createUserRequest struct {
	Name           string           `json:"name"`
	Email          string           `json:"email"`
	Password       string           `json:"password"`
	Role           *models.UserRole `json:"role"`
	StorageQuotaGB *int             `json:"storageQuotaGB"`
}

func (h *UsersHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if !authz.Allowed(currentUser, authz.OpCreateUser) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid email address")
	}
	if len(req.Password) < minPasswordLength {
		return utils.Error(c, fiber.StatusBadRequest, "password must be at least 8 characters")
	}

	role := models.UserRoleUser
	if req.Role != nil {
		role = *req.Role
		if !role.Valid() {
			return utils.Error(c, fiber.StatusBadRequest, "invalid role")
		}
	}
	if !authz.CanAssignRole(currentUser, role) {
		return utils.Error(c, fiber.StatusForbidden, "not allowed to create users with this role")
	}

	quotaGB := h.DefaultQuotaGB
	if req.StorageQuotaGB != nil {
		quotaGB = *req.StorageQuotaGB
	}
	if quotaGB <= 0 {
		return utils.Error(c, fiber.StatusBadRequest, "storage quota must be a positive integer")
	}

	if taken, err := emailTaken(h.DB, email, nil); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking email")
	} else if taken {
		return utils.Error(c, fiber.StatusConflict, "email is already in use")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed hashing password")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "User"
	}

	user := models.User{
		Name:           name,
		Email:          email,
		PasswordHash:   hash,
		Role:           role,
		StorageQuotaGB: quotaGB,
	}

	if err := h.DB.Create(&user).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating user")
	}

	logger.InfoWithUser(currentUser.ID.String(), "user_created", map[string]interface{}{
		"target_id": user.ID.String(),
		"role":      user.Role,
		"quota_gb":  user.StorageQuotaGB,
	})

	return utils.Success(c, fiber.StatusCreated, user)
}

type updateUserRequest struct {
	Name           *string          `json:"name"`
	Email          *string          `json:"email"`
	Password       *string          `json:"password"`
	Role           *models.UserRole `json:"role"`
	StorageQuotaGB *int             `json:"storageQuotaGB"`
}

func (h *UsersHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if !authz.Allowed(currentUser, authz.OpUpdateUser) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var target models.User
	if err := h.DB.First(&target, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching user")
	}

	if !authz.CanManage(currentUser, target.Role) {
		return utils.Error(c, fiber.StatusForbidden, "not allowed to manage this user")
	}

	var req updateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}

	if req.Role != nil {
		// Self-role-change is checked before anything else and is always
		// denied, superadmin included.
		if !authz.CanChangeRole(currentUser, &target) {
			return utils.Error(c, fiber.StatusForbidden, "not allowed to change this user's role")
		}
		if !req.Role.Valid() {
			return utils.Error(c, fiber.StatusBadRequest, "invalid role")
		}
		if !authz.CanAssignRole(currentUser, *req.Role) {
			return utils.Error(c, fiber.StatusForbidden, "not allowed to assign this role")
		}
		updates["role"] = *req.Role
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return utils.Error(c, fiber.StatusBadRequest, "name cannot be empty")
		}
		updates["name"] = name
	}

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid email address")
		}
		if taken, err := emailTaken(h.DB, email, &target.ID); err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed checking email")
		} else if taken {
			return utils.Error(c, fiber.StatusConflict, "email is already in use")
		}
		updates["email"] = email
	}

	if req.Password != nil {
		if len(*req.Password) < minPasswordLength {
			return utils.Error(c, fiber.StatusBadRequest, "password must be at least 8 characters")
		}
		hash, err := utils.HashPassword(*req.Password)
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed hashing password")
		}
		updates["password_hash"] = hash
	}

	if req.StorageQuotaGB != nil {
		if *req.StorageQuotaGB <= 0 {
			return utils.Error(c, fiber.StatusBadRequest, "storage quota must be a positive integer")
		}
		updates["storage_quota_gb"] = *req.StorageQuotaGB
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(&models.User{}).Where("id = ?", target.ID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating user")
	}

	var updated models.User
	if err := h.DB.First(&updated, "id = ?", target.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated user")
	}

	logger.InfoWithUser(currentUser.ID.String(), "user_updated", map[string]interface{}{
		"target_id": target.ID.String(),
	})

	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if !authz.Allowed(currentUser, authz.OpDeleteUser) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var target models.User
	if err := h.DB.First(&target, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching user")
	}

	if !authz.CanDelete(currentUser, &target) {
		return utils.Error(c, fiber.StatusForbidden, "not allowed to delete this user")
	}

	// Soft delete: the row stays, the email becomes reusable.
	if err := h.DB.Delete(&target).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting user")
	}

	logger.InfoWithUser(currentUser.ID.String(), "user_deleted", map[string]interface{}{
		"target_id": target.ID.String(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "user deleted"})
}
