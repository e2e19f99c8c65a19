package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/threadflow/internal/models"
	"github.com/maheshrc27/threadflow/internal/repository"
	"github.com/maheshrc27/threadflow/internal/service"
)

// CredentialRefreshJob proactively rotates tokens that are about to expire so
// a scheduled publish does not pay the refresh latency (or hit a provider
// hiccup) on its critical path.
type CredentialRefreshJob struct {
	cr repository.CredentialRepository
	cs service.CredentialService
}

func NewCredentialRefreshJob(cr repository.CredentialRepository, cs service.CredentialService) *CredentialRefreshJob {
	return &CredentialRefreshJob{cr: cr, cs: cs}
}

func (c *CredentialRefreshJob) RefreshExpiring() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	creds, err := c.cr.ListExpiring(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, cred := range creds {

		wg.Add(1)
		semaphore <- struct{}{}

		go func(cred *models.OAuthCredential) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.cs.Refresh(ctx, cred.UserID); err != nil {
				slog.Info("Unable to refresh tokens", "user_id", cred.UserID, "error", err.Error())
			}
		}(cred)
	}

	wg.Wait()
}
