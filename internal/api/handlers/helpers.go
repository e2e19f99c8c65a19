package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/threadflow/internal/apperrors"
)

func GetUserID(c *fiber.Ctx) int64 {
	userID, _ := strconv.Atoi(c.Locals("user_id").(string))
	return int64(userID)
}

// writeError maps the taxonomy onto HTTP and keeps the offending unit index
// in the body so the composer can point at the failing segment.
func writeError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		status = fiber.StatusBadRequest
	case apperrors.KindUnauthorized:
		status = fiber.StatusForbidden
	case apperrors.KindNotFound:
		status = fiber.StatusNotFound
	case apperrors.KindInvalidTransition:
		status = fiber.StatusConflict
	case apperrors.KindAuthExpired:
		status = fiber.StatusUnauthorized
	case apperrors.KindPlatformRejected:
		status = fiber.StatusUnprocessableEntity
	case apperrors.KindStorageFetch:
		status = fiber.StatusBadGateway
	case apperrors.KindTransientNetwork:
		status = fiber.StatusServiceUnavailable
	}

	body := fiber.Map{
		"error": err.Error(),
		"kind":  string(apperrors.KindOf(err)),
	}

	var ae *apperrors.Error
	if errors.As(err, &ae) && ae.UnitIndex >= 0 {
		body["unit_index"] = ae.UnitIndex
	}

	return c.Status(status).JSON(body)
}
