package dispatcher

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tanishq27/postloom/internal/models"
	"github.com/tanishq27/postloom/internal/platform"
	"github.com/tanishq27/postloom/internal/repository"
)

var (
	ErrPostNotFound      = errors.New("post not found")
	ErrNotPublishable    = errors.New("post status does not allow publishing")
	ErrNotTargeted       = errors.New("platform is not a target of this post")
	ErrPublishInProgress = errors.New("another publish is already in progress")
	ErrAlreadyPublished  = errors.New("platform already has a successful publish")
)

// Gateway is the manual "post now" entry point. It reuses the dispatcher's
// claim protocol so a user action and a scheduled run can never publish the
// same post concurrently.
type Gateway struct {
	d *Dispatcher
}

func NewGateway(d *Dispatcher) *Gateway {
	return &Gateway{d: d}
}

// PostNow publishes one post to one platform on the author's request.
// The named platform must be an original target, and a platform whose
// latest attempt succeeded is never re-sent. The post's aggregate status
// is recomputed over all targets afterward; manual runs never consume the
// automatic retry budget and never reschedule.
func (g *Gateway) PostNow(ctx context.Context, userID, postID int64, platformName string) (*platform.Outcome, error) {
	d := g.d

	post, err := d.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil || post.UserID != userID {
		return nil, ErrPostNotFound
	}

	publishable := false
	for _, s := range models.ManualPublishStatuses {
		if post.Status == s {
			publishable = true
			break
		}
	}
	if !publishable {
		return nil, ErrNotPublishable
	}
	if !post.HasTarget(platformName) {
		return nil, ErrNotTargeted
	}

	now := d.now()
	token := uuid.NewString()

	claimed, err := d.posts.TryClaim(ctx, post.ID, post.ClaimToken, token, now, d.cfg.ClaimTimeout, models.ManualPublishStatuses)
	if err != nil {
		return nil, err
	}
	if !claimed {
		claimConflicts.Inc()
		return nil, ErrPublishInProgress
	}

	latest, err := d.attempts.LatestPerPlatform(ctx, post.ID)
	if err != nil {
		d.release(ctx, post.ID, token)
		return nil, err
	}
	priorOK := succeededPlatforms(latest)
	if priorOK[platformName] {
		d.release(ctx, post.ID, token)
		return nil, ErrAlreadyPublished
	}

	outcome := d.publishOne(ctx, post, platformName)
	d.recordAttempts(ctx, post, []platform.Outcome{outcome}, false)
	if outcome.Success {
		priorOK[platformName] = true
	}

	res := manualResult(post, priorOK, now)
	if err := d.posts.SaveResult(ctx, post.ID, token, res); err != nil {
		if err == repository.ErrClaimLost {
			claimConflicts.Inc()
			return nil, ErrPublishInProgress
		}
		return nil, err
	}

	postsDispatched.WithLabelValues(res.Status).Inc()
	slog.Info("manual publish finished",
		"post_id", post.ID, "platform", platformName,
		"success", outcome.Success, "status", res.Status)

	if d.notifier != nil {
		if err := d.notifier.PublishResult(ctx, post.UserID, post.ID, res.Status, []platform.Outcome{outcome}); err != nil {
			slog.Error("result notification failed", "post_id", post.ID, "error", err)
		}
	}

	return &outcome, nil
}

// manualResult recomputes the aggregate from per-platform success alone.
// Targets with no attempt yet count as not succeeded. The retry counter
// is left untouched; the schedule is dropped since every manual outcome
// is terminal for the clock path.
func manualResult(post *models.Post, ok map[string]bool, now time.Time) *models.PublishResult {
	res := &models.PublishResult{RetryCount: post.RetryCount}

	succeeded := 0
	for _, target := range post.Targets {
		if ok[target] {
			succeeded++
		}
	}

	switch {
	case len(post.Targets) > 0 && succeeded == len(post.Targets):
		res.Status = models.PostStatusPublished
		res.PostedAt = sql.NullTime{Time: now, Valid: true}
	case succeeded > 0:
		res.Status = models.PostStatusPartiallyPublished
		res.PostedAt = sql.NullTime{Time: now, Valid: true}
	default:
		res.Status = models.PostStatusFailed
	}

	return res
}
