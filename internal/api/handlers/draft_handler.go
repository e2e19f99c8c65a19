package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/threadflow/internal/service"
	"github.com/maheshrc27/threadflow/internal/transfer"
)

type DraftHandler struct {
	s service.DraftService
}

func NewDraftHandler(s service.DraftService) *DraftHandler {
	return &DraftHandler{s: s}
}

func (h *DraftHandler) CreateDraft(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var dc transfer.DraftCreation
	if err := c.BodyParser(&dc); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	draft, err := h.s.Create(c.Context(), userID, &dc)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(draft)
}

func (h *DraftHandler) ListDrafts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	draftID := c.Query("id")

	if draftID != "" {
		draft, err := h.s.Get(c.Context(), userID, draftID)
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(draft)
	}

	drafts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(drafts)
}

func (h *DraftHandler) UpdateDraft(c *fiber.Ctx) error {
	userID := GetUserID(c)
	draftID := c.Params("id")

	var du transfer.DraftUpdate
	if err := c.BodyParser(&du); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	draft, err := h.s.Update(c.Context(), userID, draftID, &du)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(draft)
}

func (h *DraftHandler) RemoveDraft(c *fiber.Ctx) error {
	userID := GetUserID(c)
	draftID := c.Query("id")

	if err := h.s.SoftDelete(c.Context(), userID, draftID); err != nil {
		return writeError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
