package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/threadflow/internal/queue"
	"github.com/maheshrc27/threadflow/internal/service"
	"github.com/maheshrc27/threadflow/internal/transfer"
)

type PublishHandler struct {
	ps          service.PublishService
	ss          service.ScheduleService
	AsynqClient *asynq.Client
}

func NewPublishHandler(ps service.PublishService, ss service.ScheduleService, asynqClient *asynq.Client) *PublishHandler {
	return &PublishHandler{ps: ps, ss: ss, AsynqClient: asynqClient}
}

// PublishDraft publishes synchronously: the response arrives once the thread
// exists on the platform or a terminal error occurred.
func (h *PublishHandler) PublishDraft(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var pr transfer.PublishRequest
	if err := c.BodyParser(&pr); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	draft, err := h.ps.Publish(c.Context(), userID, pr.DraftID)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(draft)
}

func (h *PublishHandler) ScheduleDraft(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var sr transfer.ScheduleRequest
	if err := c.BodyParser(&sr); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	at, err := time.Parse(time.RFC3339, sr.At)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid scheduled time format",
		})
	}

	draft, delay, err := h.ss.Schedule(c.Context(), userID, sr.DraftID, at)
	if err != nil {
		return writeError(c, err)
	}

	payload := queue.PublishDraftPayload{DraftID: draft.ID, UserID: userID}
	if err := queue.EnqueuePublish(h.AsynqClient, payload, delay); err != nil {
		slog.Error(err.Error())
		// Without a dispatch task the scheduled status is a dead letter; roll
		// the draft back so the client can retry scheduling from a clean state.
		if _, uerr := h.ss.Unschedule(c.Context(), userID, draft.ID); uerr != nil {
			slog.Error(uerr.Error())
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Could not queue the publish dispatch; the draft was not scheduled, please retry",
		})
	}

	return c.Status(fiber.StatusOK).JSON(draft)
}

func (h *PublishHandler) UnscheduleDraft(c *fiber.Ctx) error {
	userID := GetUserID(c)
	draftID := c.Query("id")

	// The queued dispatch task is left alone; the worker notices the draft
	// is no longer scheduled and drops it.
	draft, err := h.ss.Unschedule(c.Context(), userID, draftID)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(draft)
}
