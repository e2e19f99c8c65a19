package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/threadflow/internal/apperrors"
	"github.com/maheshrc27/threadflow/internal/models"
)

func (q *Queue) HandlePublishDraftTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishDraftPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	// Stale or duplicated deliveries are no-ops: the draft may have been
	// unscheduled, rescheduled further out, published by hand, or deleted
	// since this task was enqueued.
	draft, err := q.dr.GetByID(ctx, payload.DraftID)
	if err != nil {
		return err
	}
	if draft == nil || draft.DeletedAt.Valid || draft.Status != models.DraftStatusScheduled {
		log.Printf("Skipping publish task for draft %s: no longer scheduled", payload.DraftID)
		return nil
	}
	if draft.ScheduledFor.Valid && time.Now().Before(draft.ScheduledFor.Time) {
		log.Printf("Skipping publish task for draft %s: rescheduled for later", payload.DraftID)
		return nil
	}

	if _, err := q.ps.Publish(ctx, payload.UserID, payload.DraftID); err != nil {
		log.Printf("Error publishing draft %s: %v", payload.DraftID, err)

		// Content problems and revoked auth will not fix themselves; letting
		// asynq retry those only hammers the platform.
		if errors.Is(err, apperrors.ErrValidation) ||
			errors.Is(err, apperrors.ErrPlatformRejected) ||
			errors.Is(err, apperrors.ErrAuthExpired) ||
			errors.Is(err, apperrors.ErrInvalidTransition) {
			return nil
		}
		return err
	}

	return nil
}
