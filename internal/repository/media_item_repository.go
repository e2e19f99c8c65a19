package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/threadflow/internal/models"
)

type MediaItemRepository interface {
	Create(ctx context.Context, tx *sql.Tx, item *models.MediaItem) error
	ListByUnitID(ctx context.Context, unitID string) ([]*models.MediaItem, error)
	ListByDraftID(ctx context.Context, draftID string) ([]*models.MediaItem, error)
	CountByUnitID(ctx context.Context, unitID string) (int, error)
	GetByStorageKey(ctx context.Context, storageKey string) (*models.MediaItem, error)
	RemoveByStorageKey(ctx context.Context, storageKey string) error
}

type mediaItemRepository struct {
	db *sql.DB
}

func NewMediaItemRepository(db *sql.DB) MediaItemRepository {
	return &mediaItemRepository{db: db}
}

func (r *mediaItemRepository) Create(ctx context.Context, tx *sql.Tx, item *models.MediaItem) error {
	query := `
		INSERT INTO media_items (id, unit_id, storage_key, mime_type, kind, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, item.ID, item.UnitID, item.StorageKey, item.MimeType, item.Kind, item.Position)
	} else {
		_, err = r.db.ExecContext(ctx, query, item.ID, item.UnitID, item.StorageKey, item.MimeType, item.Kind, item.Position)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

func (r *mediaItemRepository) ListByUnitID(ctx context.Context, unitID string) ([]*models.MediaItem, error) {
	query := `
		SELECT id, unit_id, storage_key, mime_type, kind, position, created_at
		FROM media_items
		WHERE unit_id = $1
		ORDER BY position
	`
	return r.list(ctx, query, unitID)
}

func (r *mediaItemRepository) ListByDraftID(ctx context.Context, draftID string) ([]*models.MediaItem, error) {
	query := `
		SELECT m.id, m.unit_id, m.storage_key, m.mime_type, m.kind, m.position, m.created_at
		FROM media_items m
		JOIN content_units u ON u.id = m.unit_id
		WHERE u.draft_id = $1
		ORDER BY u.position, m.position
	`
	return r.list(ctx, query, draftID)
}

func (r *mediaItemRepository) list(ctx context.Context, query string, arg interface{}) ([]*models.MediaItem, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var items []*models.MediaItem
	for rows.Next() {
		var m models.MediaItem
		if err := rows.Scan(&m.ID, &m.UnitID, &m.StorageKey, &m.MimeType, &m.Kind, &m.Position, &m.CreatedAt); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		items = append(items, &m)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return items, nil
}

func (r *mediaItemRepository) CountByUnitID(ctx context.Context, unitID string) (int, error) {
	query := `SELECT COUNT(*) FROM media_items WHERE unit_id = $1`

	var count int
	err := r.db.QueryRowContext(ctx, query, unitID).Scan(&count)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return count, nil
}

func (r *mediaItemRepository) GetByStorageKey(ctx context.Context, storageKey string) (*models.MediaItem, error) {
	query := `
		SELECT id, unit_id, storage_key, mime_type, kind, position, created_at
		FROM media_items
		WHERE storage_key = $1
	`

	var m models.MediaItem
	err := r.db.QueryRowContext(ctx, query, storageKey).Scan(&m.ID, &m.UnitID, &m.StorageKey, &m.MimeType, &m.Kind, &m.Position, &m.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &m, nil
}

func (r *mediaItemRepository) RemoveByStorageKey(ctx context.Context, storageKey string) error {
	query := `DELETE FROM media_items WHERE storage_key = $1`
	_, err := r.db.ExecContext(ctx, query, storageKey)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
