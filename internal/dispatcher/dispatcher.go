// Package dispatcher runs the scheduled publish pipeline: it scans for due
// posts, claims each one against concurrent runners, fans publish calls out
// to the platform adapters, and commits the aggregated result. The manual
// "post now" gateway lives here too, sharing the same claim protocol.
package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	config "github.com/tanishq27/postloom/configs"
	"github.com/tanishq27/postloom/internal/models"
	"github.com/tanishq27/postloom/internal/platform"
	"github.com/tanishq27/postloom/internal/repository"
	"github.com/tanishq27/postloom/pkg/utils"
)

// Notifier delivers the final result of a publish cycle to the post's
// author, typically as a queued webhook. A nil Notifier disables delivery.
type Notifier interface {
	PublishResult(ctx context.Context, userID, postID int64, status string, outcomes []platform.Outcome) error
}

type Dispatcher struct {
	cfg      config.Dispatcher
	secret   []byte
	posts    repository.PostRepository
	accounts repository.SocialAccountRepository
	attempts repository.PublishAttemptRepository
	assets   repository.MediaAssetRepository
	registry *platform.Registry
	notifier Notifier

	// now is swapped out in tests.
	now func() time.Time
}

func New(
	cfg config.Dispatcher,
	secret []byte,
	posts repository.PostRepository,
	accounts repository.SocialAccountRepository,
	attempts repository.PublishAttemptRepository,
	assets repository.MediaAssetRepository,
	registry *platform.Registry,
	notifier Notifier,
) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		secret:   secret,
		posts:    posts,
		accounts: accounts,
		attempts: attempts,
		assets:   assets,
		registry: registry,
		notifier: notifier,
		now:      time.Now,
	}
}

// Run executes cycles at the configured poll interval until ctx ends.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	slog.Info("dispatcher started", "poll_interval", d.cfg.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatcher stopped")
			return
		case <-ticker.C:
			if err := d.RunCycle(ctx); err != nil {
				slog.Error("dispatch cycle failed", "error", err)
			}
		}
	}
}

// RunCycle performs one scan-claim-publish pass. Posts are processed
// concurrently, bounded by MaxConcurrentPosts; each post is independent,
// so one failure never aborts the cycle.
func (d *Dispatcher) RunCycle(ctx context.Context) error {
	start := d.now()
	defer func() {
		cycleDuration.Observe(time.Since(start).Seconds())
	}()

	due, err := d.posts.FindDue(ctx, start, d.cfg.ClaimTimeout, d.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	slog.Info("due posts found", "count", len(due))

	var wg sync.WaitGroup
	sem := make(chan struct{}, d.cfg.MaxConcurrentPosts)

	for _, post := range due {
		wg.Add(1)
		sem <- struct{}{}
		go func(p *models.Post) {
			defer wg.Done()
			defer func() { <-sem }()
			d.process(ctx, p)
		}(post)
	}
	wg.Wait()

	return nil
}

// process claims and publishes a single due post. The claim token fences
// every later write, so a runner that loses the claim mid-flight cannot
// clobber another runner's result.
func (d *Dispatcher) process(ctx context.Context, post *models.Post) {
	now := d.now()
	token := uuid.NewString()

	claimed, err := d.posts.TryClaim(ctx, post.ID, post.ClaimToken, token, now, d.cfg.ClaimTimeout, models.DueStatuses)
	if err != nil {
		slog.Error("claim failed", "post_id", post.ID, "error", err)
		return
	}
	if !claimed {
		claimConflicts.Inc()
		return
	}

	latest, err := d.attempts.LatestPerPlatform(ctx, post.ID)
	if err != nil {
		slog.Error("attempt lookup failed", "post_id", post.ID, "error", err)
		d.release(ctx, post.ID, token)
		return
	}
	priorOK := succeededPlatforms(latest)

	pending := make([]string, 0, len(post.Targets))
	for _, target := range post.Targets {
		if !priorOK[target] {
			pending = append(pending, target)
		}
	}

	outcomes := d.fanOut(ctx, post, pending)
	d.recordAttempts(ctx, post, outcomes, true)

	res := d.resolve(post, priorOK, outcomes, now)
	d.commit(ctx, post, token, res, outcomes)
}

// fanOut publishes to each pending platform concurrently. Every call gets
// its own deadline so one slow platform cannot starve the rest.
func (d *Dispatcher) fanOut(ctx context.Context, post *models.Post, targets []string) []platform.Outcome {
	if len(targets) == 0 {
		return nil
	}

	outcomes := make([]platform.Outcome, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			outcomes[i] = d.publishOne(ctx, post, target)
		}(i, target)
	}
	wg.Wait()

	return outcomes
}

// publishOne resolves the account and adapter for one target and runs the
// publish call. Missing accounts and unknown platforms become classified
// failures, never errors: the aggregate needs a verdict for every target.
func (d *Dispatcher) publishOne(ctx context.Context, post *models.Post, target string) platform.Outcome {
	adapter, ok := d.registry.Get(target)
	if !ok {
		return platform.Outcome{
			Platform:     target,
			ErrorKind:    platform.ErrAccountUnavailable,
			ErrorMessage: "no adapter registered for platform",
		}
	}

	account, err := d.accounts.GetActive(ctx, post.UserID, target)
	if err != nil {
		return platform.Outcome{
			Platform:     target,
			ErrorKind:    platform.ErrTransientServerError,
			ErrorMessage: "account lookup failed: " + err.Error(),
		}
	}
	if account == nil {
		return platform.Outcome{
			Platform:     target,
			ErrorKind:    platform.ErrAccountUnavailable,
			ErrorMessage: "no active account connected",
		}
	}

	accessToken, err := utils.Decrypt(account.AccessToken, d.secret)
	if err != nil {
		return platform.Outcome{
			Platform:     target,
			ErrorKind:    platform.ErrAccountUnavailable,
			ErrorMessage: "stored credentials unreadable",
		}
	}

	req := platform.Request{
		AccessToken: accessToken,
		AccountRef:  account.AccountID,
		ServerBase:  account.ServerURL.String,
		Text:        platform.ComposeText(post.Caption, post.Hashtags),
	}
	if post.MediaAssetID.Valid {
		asset, err := d.assets.GetByID(ctx, post.MediaAssetID.Int64)
		if err != nil {
			return platform.Outcome{
				Platform:     target,
				ErrorKind:    platform.ErrTransientServerError,
				ErrorMessage: "media lookup failed: " + err.Error(),
			}
		}
		if asset != nil {
			req.MediaURL = asset.FileURL
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.AdapterTimeout)
	defer cancel()

	return adapter.Publish(callCtx, req)
}

// recordAttempts appends one history row per outcome. History writes are
// best-effort: a failed insert is logged, not propagated, because the
// post's state transition must still commit.
func (d *Dispatcher) recordAttempts(ctx context.Context, post *models.Post, outcomes []platform.Outcome, automatic bool) {
	for _, out := range outcomes {
		publishAttempts.WithLabelValues(out.Platform, attemptResult(out.Success)).Inc()

		_, err := d.attempts.Create(ctx, &models.PublishAttempt{
			UserID:         post.UserID,
			PostID:         post.ID,
			Platform:       out.Platform,
			Success:        out.Success,
			ExternalPostID: out.ExternalPostID,
			ErrorKind:      string(out.ErrorKind),
			ErrorMessage:   out.ErrorMessage,
			Automatic:      automatic,
		})
		if err != nil {
			slog.Error("attempt insert failed", "post_id", post.ID, "platform", out.Platform, "error", err)
		}
	}
}

// commit persists the resolved state and releases the claim in the same
// statement, then hands the result to the notifier.
func (d *Dispatcher) commit(ctx context.Context, post *models.Post, token string, res *models.PublishResult, outcomes []platform.Outcome) {
	if err := d.posts.SaveResult(ctx, post.ID, token, res); err != nil {
		if err == repository.ErrClaimLost {
			claimConflicts.Inc()
			slog.Warn("claim lost before commit", "post_id", post.ID)
			return
		}
		slog.Error("result commit failed", "post_id", post.ID, "error", err)
		return
	}

	postsDispatched.WithLabelValues(res.Status).Inc()
	slog.Info("post dispatched", "post_id", post.ID, "status", res.Status, "retry_count", res.RetryCount)

	if d.notifier != nil {
		if err := d.notifier.PublishResult(ctx, post.UserID, post.ID, res.Status, outcomes); err != nil {
			slog.Error("result notification failed", "post_id", post.ID, "error", err)
		}
	}
}

func (d *Dispatcher) release(ctx context.Context, postID int64, token string) {
	if err := d.posts.ReleaseClaim(ctx, postID, token); err != nil {
		slog.Error("claim release failed", "post_id", postID, "error", err)
	}
}

func succeededPlatforms(attempts []*models.PublishAttempt) map[string]bool {
	ok := make(map[string]bool, len(attempts))
	for _, a := range attempts {
		if a.Success {
			ok[a.Platform] = true
		}
	}
	return ok
}
