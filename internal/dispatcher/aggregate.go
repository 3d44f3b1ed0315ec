package dispatcher

import (
	"database/sql"
	"time"

	"github.com/tanishq27/postloom/internal/models"
	"github.com/tanishq27/postloom/internal/platform"
)

// resolve folds this cycle's outcomes together with earlier successes into
// the post's next state. A platform that already succeeded counts as
// succeeded; it was never re-sent.
//
// All targets succeeded: published. Some: partially_published, which is
// terminal for the automatic pipeline. None: rescheduled with backoff when
// every failure is retryable and the retry budget allows, failed otherwise.
func (d *Dispatcher) resolve(post *models.Post, priorOK map[string]bool, outcomes []platform.Outcome, now time.Time) *models.PublishResult {
	res := &models.PublishResult{RetryCount: post.RetryCount}

	total := len(post.Targets)
	if total == 0 {
		res.Status = models.PostStatusFailed
		return res
	}

	succeeded := 0
	for _, target := range post.Targets {
		if priorOK[target] {
			succeeded++
		}
	}
	allRetryable := true
	for _, out := range outcomes {
		if out.Success {
			succeeded++
			continue
		}
		if !out.ErrorKind.Retryable() {
			allRetryable = false
		}
	}

	// Terminal statuses drop the schedule: only scheduled and rescheduled
	// posts carry one. posted_at marks the first cycle that published
	// anything at all.
	switch {
	case succeeded == total:
		res.Status = models.PostStatusPublished
		res.PostedAt = sql.NullTime{Time: now, Valid: true}
	case succeeded > 0:
		res.Status = models.PostStatusPartiallyPublished
		res.PostedAt = sql.NullTime{Time: now, Valid: true}
	case allRetryable && post.RetryCount < d.cfg.MaxAutoRetries:
		res.Status = models.PostStatusRescheduled
		res.ScheduledAt = sql.NullTime{Time: now.Add(d.backoffFor(post.RetryCount)), Valid: true}
		res.ScheduleTZ = post.ScheduleTZ
		res.RetryCount = post.RetryCount + 1
	default:
		res.Status = models.PostStatusFailed
	}

	return res
}

// backoffFor returns the delay before retry number retryCount+1. Past the
// configured steps the last one repeats.
func (d *Dispatcher) backoffFor(retryCount int) time.Duration {
	backoff := d.cfg.RetryBackoff
	if len(backoff) == 0 {
		return 5 * time.Minute
	}
	if retryCount >= len(backoff) {
		return backoff[len(backoff)-1]
	}
	return backoff[retryCount]
}
