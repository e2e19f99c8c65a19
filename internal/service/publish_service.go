package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/threadflow/internal/apperrors"
	"github.com/maheshrc27/threadflow/internal/models"
	"github.com/maheshrc27/threadflow/internal/platform"
	"github.com/maheshrc27/threadflow/internal/transfer"
)

const (
	threadCreateAttempts = 3
	threadCreateBackoff  = 500 * time.Millisecond
)

type PublishService interface {
	// Publish submits the draft's units as one thread. On success the draft
	// transitions to posted; on any failure its status is left unchanged so
	// the caller can retry.
	Publish(ctx context.Context, userID int64, draftID string) (*models.Draft, error)
}

type publishService struct {
	ds       DraftService
	ms       MediaService
	cs       CredentialService
	platform platform.Client
	now      Clock
}

func NewPublishService(ds DraftService, ms MediaService, cs CredentialService, pc platform.Client, now Clock) PublishService {
	return &publishService{
		ds:       ds,
		ms:       ms,
		cs:       cs,
		platform: pc,
		now:      now,
	}
}

func (s *publishService) Publish(ctx context.Context, userID int64, draftID string) (*models.Draft, error) {
	draft, err := s.ds.Get(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}
	if draft.Status != models.DraftStatusDraft && draft.Status != models.DraftStatusScheduled {
		return nil, apperrors.Newf(apperrors.KindInvalidTransition, "cannot publish a %s draft", draft.Status)
	}
	if len(draft.Units) == 0 {
		return nil, apperrors.New(apperrors.KindValidation, "draft has no content units")
	}

	// The platform disallows empty posts; catch it before any network calls.
	for i, unit := range draft.Units {
		if unit.Body == "" && len(unit.Media) == 0 {
			return nil, apperrors.New(apperrors.KindValidation, "content unit has neither text nor media").AtUnit(i)
		}
	}

	token, err := s.cs.EnsureValid(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Materialize unit by unit in draft order; the entry order submitted to
	// the platform is exactly the persisted unit order.
	entries := make([]transfer.ThreadEntry, 0, len(draft.Units))
	for i, unit := range draft.Units {
		mediaIDs, err := s.ms.Materialize(ctx, token, unit.Media)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindOf(err), "media materialization failed", err).AtUnit(i)
		}
		entries = append(entries, transfer.ThreadEntry{
			Text:     unit.Body,
			MediaIDs: mediaIDs,
		})
	}

	var threadID string
	err = retryWithBackoff(ctx, threadCreateAttempts, threadCreateBackoff,
		func(err error) bool { return errors.Is(err, apperrors.ErrTransientNetwork) },
		func() error {
			var cerr error
			threadID, cerr = s.platform.CreateThread(ctx, entries, token)
			return cerr
		})
	if err != nil {
		// Already-uploaded platform media is not compensated; the platform
		// garbage-collects unattached uploads.
		return nil, apperrors.Wrap(apperrors.KindOf(err), "thread creation failed", err)
	}

	slog.Info("thread created", "draft_id", draftID, "thread_id", threadID)

	postedAt := s.now()
	return s.ds.SetStatus(ctx, draftID, models.DraftStatusPosted, nil, &postedAt)
}
