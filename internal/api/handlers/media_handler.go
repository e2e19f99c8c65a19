package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/threadflow/internal/service"
	"github.com/maheshrc27/threadflow/internal/transfer"
)

type MediaHandler struct {
	s service.MediaService
}

func NewMediaHandler(s service.MediaService) *MediaHandler {
	return &MediaHandler{s: s}
}

// RequestUploadGrant hands the client a presigned URL; the binary goes to
// blob storage directly and never through this process.
func (h *MediaHandler) RequestUploadGrant(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var gr transfer.UploadGrantRequest
	if err := c.BodyParser(&gr); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	grant, err := h.s.RequestUploadGrant(c.Context(), userID, &gr)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(grant)
}

func (h *MediaHandler) RecordAttachment(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var ar transfer.AttachmentRequest
	if err := c.BodyParser(&ar); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	item, err := h.s.RecordAttachment(c.Context(), userID, &ar)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(item)
}

func (h *MediaHandler) DeleteAttachment(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var dr transfer.DetachmentRequest
	if err := c.BodyParser(&dr); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if err := h.s.DeleteAttachment(c.Context(), userID, dr.StorageKey); err != nil {
		return writeError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
