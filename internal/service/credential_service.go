package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/maheshrc27/threadflow/internal/apperrors"
	"github.com/maheshrc27/threadflow/internal/models"
	"github.com/maheshrc27/threadflow/internal/oauth"
	"github.com/maheshrc27/threadflow/internal/repository"
	"github.com/maheshrc27/threadflow/pkg/utils"
	"golang.org/x/sync/singleflight"
)

// expirySkew treats tokens about to lapse as already expired so a token
// returned to the publisher does not die mid-flight.
const expirySkew = time.Minute

type CredentialService interface {
	// EnsureValid returns a usable plaintext access token for the user,
	// refreshing it first when expired. Concurrent callers for the same user
	// share a single refresh exchange.
	EnsureValid(ctx context.Context, userID int64) (string, error)
	// Refresh rotates the user's tokens even when the current ones are still
	// fresh; the expiry sweep uses it to stay ahead of expirations.
	Refresh(ctx context.Context, userID int64) error
}

type credentialService struct {
	cr        repository.CredentialRepository
	provider  oauth.Provider
	secretKey []byte
	now       Clock
	group     singleflight.Group
}

func NewCredentialService(cr repository.CredentialRepository, provider oauth.Provider, secretKey string, now Clock) CredentialService {
	return &credentialService{
		cr:        cr,
		provider:  provider,
		secretKey: []byte(secretKey),
		now:       now,
	}
}

func (s *credentialService) EnsureValid(ctx context.Context, userID int64) (string, error) {
	cred, err := s.cr.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if cred == nil || cred.NeedsReauth {
		return "", apperrors.New(apperrors.KindAuthExpired, "no usable credential, account must be re-linked")
	}

	if s.now().Before(cred.ExpiresAt.Add(-expirySkew)) {
		return utils.Decrypt(cred.AccessToken, s.secretKey)
	}

	// Single-flight per user: duplicate concurrent refreshes can invalidate
	// each other at some providers, so everyone waits on one exchange.
	token, err, _ := s.group.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		return s.refresh(ctx, userID, false)
	})
	if err != nil {
		return "", err
	}

	return token.(string), nil
}

func (s *credentialService) Refresh(ctx context.Context, userID int64) error {
	_, err, _ := s.group.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		return s.refresh(ctx, userID, true)
	})
	return err
}

func (s *credentialService) refresh(ctx context.Context, userID int64, force bool) (string, error) {
	// Re-read under the flight: a caller that queued behind a finished
	// refresh should use the rotated credential, not trigger another one.
	cred, err := s.cr.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if cred == nil || cred.NeedsReauth {
		return "", apperrors.New(apperrors.KindAuthExpired, "no usable credential, account must be re-linked")
	}
	if !force && s.now().Before(cred.ExpiresAt.Add(-expirySkew)) {
		return utils.Decrypt(cred.AccessToken, s.secretKey)
	}

	refreshToken, err := utils.Decrypt(cred.RefreshToken, s.secretKey)
	if err != nil {
		return "", err
	}

	tokens, err := s.provider.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrAuthExpired) {
			// The stored credential is left untouched so support can inspect
			// it; the flag routes the user to re-linking.
			if ferr := s.cr.FlagReauth(ctx, userID); ferr != nil {
				slog.Info(ferr.Error())
			}
		}
		return "", err
	}

	encryptedAccess, err := utils.Encrypt([]byte(tokens.AccessToken), s.secretKey)
	if err != nil {
		return "", err
	}
	encryptedRefresh, err := utils.Encrypt([]byte(tokens.RefreshToken), s.secretKey)
	if err != nil {
		return "", err
	}

	rotated := models.OAuthCredential{
		AccessToken:  encryptedAccess,
		RefreshToken: encryptedRefresh,
		ExpiresAt:    tokens.ExpiresAt,
	}
	if err := s.cr.SetToken(ctx, userID, cred.AccessToken, &rotated); err != nil {
		return "", fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	return tokens.AccessToken, nil
}
