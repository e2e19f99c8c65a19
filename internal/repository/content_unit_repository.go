package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/lib/pq"
	"github.com/maheshrc27/threadflow/internal/models"
)

type ContentUnitRepository interface {
	Create(ctx context.Context, tx *sql.Tx, unit *models.ContentUnit) error
	ListByDraftID(ctx context.Context, draftID string) ([]*models.ContentUnit, error)
	GetByID(ctx context.Context, id string) (*models.ContentUnit, error)
	ReplaceForDraft(ctx context.Context, tx *sql.Tx, draftID string, units []*models.ContentUnit) error
}

type contentUnitRepository struct {
	db *sql.DB
}

func NewContentUnitRepository(db *sql.DB) ContentUnitRepository {
	return &contentUnitRepository{db: db}
}

func (r *contentUnitRepository) Create(ctx context.Context, tx *sql.Tx, unit *models.ContentUnit) error {
	query := `
		INSERT INTO content_units (id, draft_id, position, body)
		VALUES ($1, $2, $3, $4)
	`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, unit.ID, unit.DraftID, unit.Position, unit.Body)
	} else {
		_, err = r.db.ExecContext(ctx, query, unit.ID, unit.DraftID, unit.Position, unit.Body)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

func (r *contentUnitRepository) ListByDraftID(ctx context.Context, draftID string) ([]*models.ContentUnit, error) {
	query := `
		SELECT id, draft_id, position, body
		FROM content_units
		WHERE draft_id = $1
		ORDER BY position
	`
	rows, err := r.db.QueryContext(ctx, query, draftID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var units []*models.ContentUnit
	for rows.Next() {
		var u models.ContentUnit
		if err := rows.Scan(&u.ID, &u.DraftID, &u.Position, &u.Body); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		units = append(units, &u)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return units, nil
}

func (r *contentUnitRepository) GetByID(ctx context.Context, id string) (*models.ContentUnit, error) {
	query := `SELECT id, draft_id, position, body FROM content_units WHERE id = $1`

	var u models.ContentUnit
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.DraftID, &u.Position, &u.Body)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &u, nil
}

// ReplaceForDraft upserts the given units (keeping their stable ids so media
// rows and autosave correlation survive edits) and removes units no longer
// present. Attached media rows follow their unit via ON DELETE CASCADE.
func (r *contentUnitRepository) ReplaceForDraft(ctx context.Context, tx *sql.Tx, draftID string, units []*models.ContentUnit) error {
	keep := make([]string, 0, len(units))
	for _, u := range units {
		keep = append(keep, u.ID)
	}

	deleteQuery := `DELETE FROM content_units WHERE draft_id = $1 AND NOT (id = ANY($2))`
	upsertQuery := `
		INSERT INTO content_units (id, draft_id, position, body)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET position = EXCLUDED.position, body = EXCLUDED.body
	`

	exec := func(query string, args ...interface{}) error {
		var err error
		if tx != nil {
			_, err = tx.ExecContext(ctx, query, args...)
		} else {
			_, err = r.db.ExecContext(ctx, query, args...)
		}
		return err
	}

	if err := exec(deleteQuery, draftID, pq.Array(keep)); err != nil {
		slog.Info(err.Error())
		return err
	}

	for _, u := range units {
		if err := exec(upsertQuery, u.ID, draftID, u.Position, u.Body); err != nil {
			slog.Info(err.Error())
			return err
		}
	}

	return nil
}
