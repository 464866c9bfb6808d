package handlers

import (
	"fmt"
	"strings"

	"github.com/cloudvault/backend/internal/authz"
	"github.com/cloudvault/backend/internal/diskreport"
	"github.com/cloudvault/backend/internal/filestore"
	"github.com/cloudvault/backend/internal/middleware"
	"github.com/cloudvault/backend/pkg/logger"
	"github.com/cloudvault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type DiskHandler struct {
	Reporter *diskreport.Reporter
}

func NewDiskHandler(reporter *diskreport.Reporter) *DiskHandler {
	return &DiskHandler{Reporter: reporter}
}

func (h *DiskHandler) Info(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if !authz.Allowed(currentUser, authz.OpViewDiskReport) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	drives, err := h.Reporter.Drives()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed reading disk information")
	}

	return utils.Success(c, fiber.StatusOK, drives)
}

func (h *DiskHandler) Usage(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if !authz.Allowed(currentUser, authz.OpViewDiskReport) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	mount, err := h.requestedMount(c)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	usages, err := h.Reporter.UserUsageOnMount(c.Context(), mount)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed computing disk usage")
	}

	return utils.Success(c, fiber.StatusOK, usages)
}

func (h *DiskHandler) UserFiles(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if !authz.Allowed(currentUser, authz.OpViewDiskReport) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	mount, err := h.requestedMount(c)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	mask := authz.MaskFileNames(currentUser)
	files, err := h.Reporter.UserFilesOnMount(mount, userID.String(), mask)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing user files")
	}

	logger.InfoWithUser(currentUser.ID.String(), "disk_user_files_viewed", map[string]interface{}{
		"target_id": userID.String(),
		"mount":     mount,
		"masked":    mask,
	})

	return utils.Success(c, fiber.StatusOK, files)
}

func (h *DiskHandler) DownloadUserFile(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if !authz.Allowed(currentUser, authz.OpDownloadReportedFile) {
		return utils.Error(c, fiber.StatusForbidden, "superadmin access required")
	}

	mount, err := h.requestedMount(c)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	f, info, err := h.Reporter.OpenFile(mount, userID.String(), c.Params("name"))
	if err != nil {
		if err == filestore.ErrNotFound {
			return utils.Error(c, fiber.StatusNotFound, "file not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed opening file")
	}

	logger.InfoWithUser(currentUser.ID.String(), "disk_file_downloaded", map[string]interface{}{
		"target_id": userID.String(),
		"file_name": info.Name(),
		"mount":     mount,
	})

	c.Set("Content-Type", "application/octet-stream")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Name()))
	return c.SendStream(f, int(info.Size()))
}

// requestedMount validates the mount query parameter against the enumerated
// drives; report scans never run over arbitrary paths.
func (h *DiskHandler) requestedMount(c *fiber.Ctx) (string, error) {
	mount := strings.TrimSpace(c.Query("mount"))
	if mount == "" {
		return "", fmt.Errorf("mount is required")
	}
	if err := h.Reporter.ValidateMount(mount); err != nil {
		return "", fmt.Errorf("unknown mount")
	}
	return mount, nil
}
