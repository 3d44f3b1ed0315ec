package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tanishq27/postloom/internal/models"
	"github.com/tanishq27/postloom/internal/platform"
	"github.com/tanishq27/postloom/internal/repository"
	"github.com/tanishq27/postloom/internal/service"
)

// TokenRefreshJob renews OAuth tokens shortly before they expire so the
// dispatcher never publishes with a stale credential. An account whose
// refresh fails is marked expired; its publishes surface as AuthExpired
// until the user reconnects.
type TokenRefreshJob struct {
	sr repository.SocialAccountRepository
	tt service.TiktokService
	ig service.InstagramService
}

func NewTokenRefreshJob(
	sr repository.SocialAccountRepository,
	tt service.TiktokService,
	ig service.InstagramService) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr: sr,
		tt: tt,
		ig: ig,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	accounts, err := c.sr.ListExpiring(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			var err error
			switch acc.Platform {
			case platform.Instagram:
				err = c.ig.RefreshInstagramToken(ctx, acc.UserID, acc.AccessToken, acc.RefreshToken)
			case platform.Tiktok:
				err = c.tt.RefreshTiktokToken(ctx, acc.UserID, acc.AccessToken, acc.RefreshToken)
			default:
				return
			}

			if err != nil {
				slog.Warn("token refresh failed", "platform", acc.Platform, "account_id", acc.ID, "error", err)
				if serr := c.sr.SetStatus(ctx, acc.ID, models.AccountStatusExpired); serr != nil {
					slog.Info(serr.Error())
				}
			}
		}(acc)
	}

	wg.Wait()
}
