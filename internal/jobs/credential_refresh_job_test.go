package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/threadflow/internal/models"
	"github.com/maheshrc27/threadflow/internal/repository"
	"github.com/stretchr/testify/assert"
)

type fakeCredentialRepo struct {
	repository.CredentialRepository

	expiring []*models.OAuthCredential
	err      error
}

func (f *fakeCredentialRepo) ListExpiring(ctx context.Context, from, until time.Time) ([]*models.OAuthCredential, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.expiring, nil
}

type fakeCredentialService struct {
	mu        sync.Mutex
	refreshed []int64
	errFor    map[int64]error
}

func (f *fakeCredentialService) EnsureValid(ctx context.Context, userID int64) (string, error) {
	return "", nil
}

func (f *fakeCredentialService) Refresh(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, userID)
	return f.errFor[userID]
}

func TestRefreshExpiringRotatesEveryListedCredential(t *testing.T) {
	repo := &fakeCredentialRepo{expiring: []*models.OAuthCredential{
		{UserID: 1}, {UserID: 2}, {UserID: 3},
	}}
	cs := &fakeCredentialService{}

	NewCredentialRefreshJob(repo, cs).RefreshExpiring()

	assert.ElementsMatch(t, []int64{1, 2, 3}, cs.refreshed)
}

func TestRefreshExpiringContinuesPastFailures(t *testing.T) {
	repo := &fakeCredentialRepo{expiring: []*models.OAuthCredential{
		{UserID: 1}, {UserID: 2}, {UserID: 3},
	}}
	cs := &fakeCredentialService{errFor: map[int64]error{
		2: errors.New("refresh token rejected by provider"),
	}}

	// One dead credential must not keep the rest from rotating.
	NewCredentialRefreshJob(repo, cs).RefreshExpiring()

	assert.ElementsMatch(t, []int64{1, 2, 3}, cs.refreshed)
}

func TestRefreshExpiringToleratesListFailure(t *testing.T) {
	repo := &fakeCredentialRepo{err: errors.New("database unavailable")}
	cs := &fakeCredentialService{}

	NewCredentialRefreshJob(repo, cs).RefreshExpiring()

	assert.Empty(t, cs.refreshed)
}
