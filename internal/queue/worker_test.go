package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/threadflow/internal/apperrors"
	"github.com/maheshrc27/threadflow/internal/models"
	"github.com/maheshrc27/threadflow/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDraftRepo struct {
	repository.DraftRepository

	draft *models.Draft
}

func (f *fakeDraftRepo) GetByID(ctx context.Context, id string) (*models.Draft, error) {
	if f.draft == nil || f.draft.ID != id {
		return nil, nil
	}
	return f.draft, nil
}

type fakePublisher struct {
	err   error
	calls int
}

func (f *fakePublisher) Publish(ctx context.Context, userID int64, draftID string) (*models.Draft, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.Draft{ID: draftID, UserID: userID, Status: models.DraftStatusPosted}, nil
}

func publishTask(t *testing.T, draftID string, userID int64) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(PublishDraftPayload{DraftID: draftID, UserID: userID})
	require.NoError(t, err)
	return asynq.NewTask(TaskTypePublishDraft, payload)
}

func scheduledDraft(at time.Time) *models.Draft {
	return &models.Draft{
		ID:           "d1",
		UserID:       7,
		Status:       models.DraftStatusScheduled,
		ScheduledFor: sql.NullTime{Time: at, Valid: true},
	}
}

func TestWorkerPublishesDueDraft(t *testing.T) {
	ps := &fakePublisher{}
	q := NewQueue(&fakeDraftRepo{draft: scheduledDraft(time.Now().Add(-time.Second))}, ps)

	err := q.HandlePublishDraftTask(context.Background(), publishTask(t, "d1", 7))
	require.NoError(t, err)
	assert.Equal(t, 1, ps.calls)
}

func TestWorkerSkipsStaleDeliveries(t *testing.T) {
	cases := []struct {
		name  string
		draft *models.Draft
	}{
		{"deleted draft", nil},
		{"unscheduled draft", &models.Draft{ID: "d1", UserID: 7, Status: models.DraftStatusDraft}},
		{"already published", &models.Draft{ID: "d1", UserID: 7, Status: models.DraftStatusPosted}},
		{"soft deleted", &models.Draft{
			ID: "d1", UserID: 7, Status: models.DraftStatusScheduled,
			DeletedAt: sql.NullTime{Time: time.Now(), Valid: true},
		}},
		{"rescheduled for later", scheduledDraft(time.Now().Add(time.Hour))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ps := &fakePublisher{}
			q := NewQueue(&fakeDraftRepo{draft: tc.draft}, ps)

			// Stale tasks are dropped without error so asynq does not redeliver.
			err := q.HandlePublishDraftTask(context.Background(), publishTask(t, "d1", 7))
			require.NoError(t, err)
			assert.Equal(t, 0, ps.calls)
		})
	}
}

func TestWorkerDoesNotRetryTerminalFailures(t *testing.T) {
	for _, kind := range []apperrors.Kind{
		apperrors.KindValidation,
		apperrors.KindPlatformRejected,
		apperrors.KindAuthExpired,
		apperrors.KindInvalidTransition,
	} {
		ps := &fakePublisher{err: apperrors.New(kind, "terminal failure")}
		q := NewQueue(&fakeDraftRepo{draft: scheduledDraft(time.Now().Add(-time.Second))}, ps)

		err := q.HandlePublishDraftTask(context.Background(), publishTask(t, "d1", 7))
		assert.NoErrorf(t, err, "kind %s must not be requeued", kind)
	}
}

func TestWorkerRetriesTransientFailures(t *testing.T) {
	ps := &fakePublisher{err: apperrors.New(apperrors.KindTransientNetwork, "platform returned 503")}
	q := NewQueue(&fakeDraftRepo{draft: scheduledDraft(time.Now().Add(-time.Second))}, ps)

	err := q.HandlePublishDraftTask(context.Background(), publishTask(t, "d1", 7))
	assert.Error(t, err, "transient failures ride asynq's retry")
}
