package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/maheshrc27/threadflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func draftColumns() []string {
	return []string{"id", "user_id", "status", "scheduled_for", "posted_at", "deleted_at", "created_at", "updated_at"}
}

func TestDraftRepositoryCreate(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewDraftRepository(db)

	mock.ExpectExec("INSERT INTO drafts").
		WithArgs("d1", int64(7), models.DraftStatusDraft).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := r.Create(context.Background(), nil, &models.Draft{ID: "d1", UserID: 7, Status: models.DraftStatusDraft})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftRepositoryGetByIDIncludesTombstones(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewDraftRepository(db)

	now := time.Now()
	deletedAt := now.Add(-time.Hour)
	mock.ExpectQuery("SELECT id, user_id, status, scheduled_for, posted_at, deleted_at, created_at, updated_at").
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows(draftColumns()).
			AddRow("d1", int64(7), models.DraftStatusDraft, nil, nil, deletedAt, now, now))

	draft, err := r.GetByID(context.Background(), "d1")
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.True(t, draft.DeletedAt.Valid, "tombstones are returned, callers decide")
	assert.False(t, draft.ScheduledFor.Valid)
}

func TestDraftRepositoryGetByIDMissing(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewDraftRepository(db)

	mock.ExpectQuery("SELECT id, user_id, status").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	draft, err := r.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, draft)
}

func TestDraftRepositoryListExcludesDeleted(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewDraftRepository(db)

	now := time.Now()
	mock.ExpectQuery("deleted_at IS NULL").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(draftColumns()).
			AddRow("d2", int64(7), models.DraftStatusScheduled, now.Add(time.Hour), nil, nil, now, now).
			AddRow("d1", int64(7), models.DraftStatusDraft, nil, nil, nil, now, now))

	drafts, err := r.ListByUserID(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, "d2", drafts[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftRepositorySetStatus(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewDraftRepository(db)

	postedAt := time.Now()
	mock.ExpectExec("UPDATE drafts").
		WithArgs(models.DraftStatusPosted, nil, &postedAt, sqlmock.AnyArg(), "d1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := r.SetStatus(context.Background(), "d1", models.DraftStatusPosted, nil, &postedAt)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftRepositorySoftDeleteGuardsTombstones(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewDraftRepository(db)

	at := time.Now()
	mock.ExpectExec("UPDATE drafts SET deleted_at").
		WithArgs(at, "d1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.SoftDelete(context.Background(), "d1", at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftRepositoryCheckByUserID(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewDraftRepository(db)

	mock.ExpectQuery("SELECT 1 FROM drafts").
		WithArgs("d1", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	ok, err := r.CheckByUserID(context.Background(), "d1", 7)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectQuery("SELECT 1 FROM drafts").
		WithArgs("d1", int64(8)).
		WillReturnError(sql.ErrNoRows)

	ok, err = r.CheckByUserID(context.Background(), "d1", 8)
	require.NoError(t, err)
	assert.False(t, ok)
}
