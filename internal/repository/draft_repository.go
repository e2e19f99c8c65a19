package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/maheshrc27/threadflow/internal/models"
)

type DraftRepository interface {
	Create(ctx context.Context, tx *sql.Tx, draft *models.Draft) error
	GetByID(ctx context.Context, id string) (*models.Draft, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.Draft, error)
	CheckByUserID(ctx context.Context, draftID string, userID int64) (bool, error)
	SetStatus(ctx context.Context, id, status string, scheduledFor, postedAt *time.Time) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	Touch(ctx context.Context, tx *sql.Tx, id string, at time.Time) error
}

type draftRepository struct {
	db *sql.DB
}

func NewDraftRepository(db *sql.DB) DraftRepository {
	return &draftRepository{db: db}
}

func (r *draftRepository) Create(ctx context.Context, tx *sql.Tx, draft *models.Draft) error {
	query := `
		INSERT INTO drafts (id, user_id, status)
		VALUES ($1, $2, $3)
	`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, draft.ID, draft.UserID, draft.Status)
	} else {
		_, err = r.db.ExecContext(ctx, query, draft.ID, draft.UserID, draft.Status)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

// GetByID returns the draft row even when soft-deleted; callers decide what a
// tombstone means for their operation.
func (r *draftRepository) GetByID(ctx context.Context, id string) (*models.Draft, error) {
	query := `
		SELECT id, user_id, status, scheduled_for, posted_at, deleted_at, created_at, updated_at
		FROM drafts WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)

	var d models.Draft
	err := row.Scan(&d.ID, &d.UserID, &d.Status, &d.ScheduledFor, &d.PostedAt, &d.DeletedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &d, nil
}

func (r *draftRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Draft, error) {
	query := `
		SELECT id, user_id, status, scheduled_for, posted_at, deleted_at, created_at, updated_at
		FROM drafts
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY updated_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var drafts []*models.Draft
	for rows.Next() {
		var d models.Draft
		err := rows.Scan(&d.ID, &d.UserID, &d.Status, &d.ScheduledFor, &d.PostedAt, &d.DeletedAt, &d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		drafts = append(drafts, &d)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return drafts, nil
}

func (r *draftRepository) CheckByUserID(ctx context.Context, draftID string, userID int64) (bool, error) {
	query := `SELECT 1 FROM drafts WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`

	var result int
	err := r.db.QueryRowContext(ctx, query, draftID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *draftRepository) SetStatus(ctx context.Context, id, status string, scheduledFor, postedAt *time.Time) error {
	query := `
		UPDATE drafts
		SET status = $1,
			scheduled_for = $2,
			posted_at = $3,
			updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, status, scheduledFor, postedAt, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *draftRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE drafts SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *draftRepository) Touch(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	query := `UPDATE drafts SET updated_at = $1 WHERE id = $2`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, at, id)
	} else {
		_, err = r.db.ExecContext(ctx, query, at, id)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
