package handlers

import (
	"fmt"

	"github.com/cloudvault/backend/internal/filestore"
	"github.com/cloudvault/backend/internal/middleware"
	"github.com/cloudvault/backend/internal/quota"
	"github.com/cloudvault/backend/pkg/logger"
	"github.com/cloudvault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type FilesHandler struct {
	Store *filestore.Store
	Quota *quota.Accountant
}

func NewFilesHandler(store *filestore.Store, accountant *quota.Accountant) *FilesHandler {
	return &FilesHandler{Store: store, Quota: accountant}
}

func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "file is required")
	}
	if fileHeader.Size == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "file is empty")
	}

	// The quota check and the write happen under the user's lock so two
	// concurrent uploads cannot both pass the check before either lands.
	unlock := h.Quota.Lock(currentUser.ID)
	defer unlock()

	if err := h.Quota.Check(currentUser, fileHeader.Size); err != nil {
		switch err {
		case quota.ErrFileTooLarge:
			return utils.Error(c, fiber.StatusRequestEntityTooLarge, "file exceeds the 5 GiB per-file limit")
		case quota.ErrQuotaExceeded:
			return utils.Error(c, fiber.StatusRequestEntityTooLarge, "upload exceeds your storage quota")
		default:
			return utils.Error(c, fiber.StatusInternalServerError, "failed checking quota")
		}
	}

	stream, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed opening uploaded file")
	}
	defer stream.Close()

	storedName, written, err := h.Store.Save(currentUser.ID.String(), fileHeader.Filename, stream)
	if err != nil {
		if err == filestore.ErrTooManyConflicts {
			return utils.Error(c, fiber.StatusConflict, "too many files with this name")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed storing file")
	}

	logger.InfoWithUser(currentUser.ID.String(), "file_uploaded", map[string]interface{}{
		"file_name": storedName,
		"file_size": written,
	})

	return utils.Success(c, fiber.StatusCreated, fiber.Map{
		"fileName": storedName,
		"size":     written,
	})
}

func (h *FilesHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	entries, err := h.Store.List(currentUser.ID.String())
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing files")
	}

	return utils.Success(c, fiber.StatusOK, entries)
}

func (h *FilesHandler) Usage(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	consumed, err := h.Quota.Usage(currentUser.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed computing usage")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"usedBytes":  consumed,
		"quotaBytes": currentUser.QuotaBytes(),
	})
}

func (h *FilesHandler) Download(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	f, info, err := h.Store.Open(currentUser.ID.String(), c.Params("name"))
	if err != nil {
		if err == filestore.ErrNotFound {
			return utils.Error(c, fiber.StatusNotFound, "file not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed opening file")
	}

	logger.InfoWithUser(currentUser.ID.String(), "file_downloaded", map[string]interface{}{
		"file_name": info.Name(),
		"file_size": info.Size(),
	})

	c.Set("Content-Type", "application/octet-stream")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Name()))
	return c.SendStream(f, int(info.Size()))
}

func (h *FilesHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	name := c.Params("name")
	if err := h.Store.Delete(currentUser.ID.String(), name); err != nil {
		if err == filestore.ErrNotFound {
			return utils.Error(c, fiber.StatusNotFound, "file not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting file")
	}

	logger.InfoWithUser(currentUser.ID.String(), "file_deleted", map[string]interface{}{
		"file_name": filestore.SanitizeFileName(name),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "file deleted"})
}
