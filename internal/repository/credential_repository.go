package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/threadflow/internal/models"
)

type CredentialRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*models.OAuthCredential, error)
	ListExpiring(ctx context.Context, from, until time.Time) ([]*models.OAuthCredential, error)
	SetToken(ctx context.Context, userID int64, oldAccessToken string, cred *models.OAuthCredential) error
	FlagReauth(ctx context.Context, userID int64) error
}

type credentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) GetByUserID(ctx context.Context, userID int64) (*models.OAuthCredential, error) {
	query := `
		SELECT user_id, access_token, refresh_token, expires_at, needs_reauth, created_at, updated_at
		FROM oauth_credentials
		WHERE user_id = $1
	`
	row := r.db.QueryRowContext(ctx, query, userID)

	var c models.OAuthCredential
	err := row.Scan(&c.UserID, &c.AccessToken, &c.RefreshToken, &c.ExpiresAt, &c.NeedsReauth, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &c, nil
}

func (r *credentialRepository) ListExpiring(ctx context.Context, from, until time.Time) ([]*models.OAuthCredential, error) {
	query := `
		SELECT user_id, access_token, refresh_token, expires_at, needs_reauth, created_at, updated_at
		FROM oauth_credentials
		WHERE needs_reauth = FALSE
		AND ((expires_at BETWEEN $1 AND $2) OR expires_at < $1)
	`
	rows, err := r.db.QueryContext(ctx, query, from, until)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var creds []*models.OAuthCredential
	for rows.Next() {
		var c models.OAuthCredential
		err := rows.Scan(&c.UserID, &c.AccessToken, &c.RefreshToken, &c.ExpiresAt, &c.NeedsReauth, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		creds = append(creds, &c)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return creds, nil
}

// SetToken replaces both tokens and the expiry in one statement, guarded by
// the old access token so a concurrent refresh that already rotated the row
// does not get clobbered by a stale result.
func (r *credentialRepository) SetToken(ctx context.Context, userID int64, oldAccessToken string, cred *models.OAuthCredential) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE oauth_credentials
		SET access_token = $3,
			refresh_token = $4,
			expires_at = $5,
			needs_reauth = FALSE,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1 AND access_token = $2
	`
	result, err := tx.ExecContext(ctx, query, userID, oldAccessToken, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		slog.Info("no rows affected; credential may have been rotated concurrently")
		return errors.New("no rows affected; credential may have been rotated concurrently")
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *credentialRepository) FlagReauth(ctx context.Context, userID int64) error {
	query := `
		UPDATE oauth_credentials
		SET needs_reauth = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1
	`
	_, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
