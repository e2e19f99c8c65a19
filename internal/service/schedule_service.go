package service

import (
	"context"
	"time"

	"github.com/maheshrc27/threadflow/internal/apperrors"
	"github.com/maheshrc27/threadflow/internal/models"
)

// MinScheduleLead is the minimum distance into the future a publish may be
// scheduled for.
const MinScheduleLead = 5 * time.Minute

type ScheduleService interface {
	// Schedule records the intent to publish at the given time and returns
	// the updated draft plus the delay until it is due. Firing the publish at
	// that time is the dispatch adapter's job, not this service's.
	Schedule(ctx context.Context, userID int64, draftID string, at time.Time) (*models.Draft, time.Duration, error)
	Unschedule(ctx context.Context, userID int64, draftID string) (*models.Draft, error)
}

type scheduleService struct {
	ds  DraftService
	now Clock
}

func NewScheduleService(ds DraftService, now Clock) ScheduleService {
	return &scheduleService{ds: ds, now: now}
}

func (s *scheduleService) Schedule(ctx context.Context, userID int64, draftID string, at time.Time) (*models.Draft, time.Duration, error) {
	// Owner scoping happens on the read; SetStatus itself is unscoped.
	if _, err := s.ds.Get(ctx, userID, draftID); err != nil {
		return nil, 0, err
	}

	requestTime := s.now()
	if at.Sub(requestTime) < MinScheduleLead {
		return nil, 0, apperrors.Newf(apperrors.KindValidation, "scheduled time must be at least %s in the future", MinScheduleLead)
	}

	draft, err := s.ds.SetStatus(ctx, draftID, models.DraftStatusScheduled, &at, nil)
	if err != nil {
		return nil, 0, err
	}

	delay := at.Sub(requestTime)
	return draft, delay, nil
}

func (s *scheduleService) Unschedule(ctx context.Context, userID int64, draftID string) (*models.Draft, error) {
	draft, err := s.ds.Get(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}
	if draft.Status != models.DraftStatusScheduled {
		return nil, apperrors.Newf(apperrors.KindInvalidTransition, "cannot unschedule a %s draft", draft.Status)
	}

	return s.ds.SetStatus(ctx, draftID, models.DraftStatusDraft, nil, nil)
}
