package dispatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tanishq27/postloom/internal/models"
	"github.com/tanishq27/postloom/internal/platform"
)

func resolver(t *testing.T) *Dispatcher {
	t.Helper()
	return newTestEnv(t).d
}

func TestResolve_AllSuccess(t *testing.T) {
	d := resolver(t)
	post := duePost(1, 7, platform.Mastodon, platform.Telegram)

	res := d.resolve(post, nil, []platform.Outcome{
		{Platform: platform.Mastodon, Success: true},
		{Platform: platform.Telegram, Success: true},
	}, testNow)

	assert.Equal(t, models.PostStatusPublished, res.Status)
	assert.True(t, res.PostedAt.Valid)
	assert.False(t, res.ScheduledAt.Valid)
	assert.Equal(t, 0, res.RetryCount)
}

func TestResolve_MixedNeverAutoRetries(t *testing.T) {
	d := resolver(t)
	post := duePost(2, 7, platform.Mastodon, platform.Telegram)

	res := d.resolve(post, nil, []platform.Outcome{
		{Platform: platform.Mastodon, Success: true},
		{Platform: platform.Telegram, ErrorKind: platform.ErrRateLimited},
	}, testNow)

	assert.Equal(t, models.PostStatusPartiallyPublished, res.Status)
	assert.True(t, res.PostedAt.Valid)
	assert.False(t, res.ScheduledAt.Valid, "partial publish must not reschedule")
	assert.Equal(t, 0, res.RetryCount)
}

func TestResolve_RetryableFailuresReschedule(t *testing.T) {
	d := resolver(t)

	for _, kind := range []platform.ErrorKind{
		platform.ErrAccountUnavailable,
		platform.ErrRateLimited,
		platform.ErrTimeout,
		platform.ErrTransientServerError,
	} {
		t.Run(string(kind), func(t *testing.T) {
			post := duePost(3, 7, platform.Mastodon)

			res := d.resolve(post, nil, []platform.Outcome{
				{Platform: platform.Mastodon, ErrorKind: kind},
			}, testNow)

			assert.Equal(t, models.PostStatusRescheduled, res.Status)
			assert.Equal(t, 1, res.RetryCount)
			assert.Equal(t, testNow.Add(5*time.Minute), res.ScheduledAt.Time)
			assert.Equal(t, "Europe/Berlin", res.ScheduleTZ.String)
			assert.False(t, res.PostedAt.Valid)
		})
	}
}

func TestResolve_NonRetryableFailureFailsImmediately(t *testing.T) {
	d := resolver(t)

	for _, kind := range []platform.ErrorKind{
		platform.ErrAuthExpired,
		platform.ErrContentRejected,
		platform.ErrUnknown,
	} {
		t.Run(string(kind), func(t *testing.T) {
			post := duePost(4, 7, platform.Mastodon)

			res := d.resolve(post, nil, []platform.Outcome{
				{Platform: platform.Mastodon, ErrorKind: kind},
			}, testNow)

			assert.Equal(t, models.PostStatusFailed, res.Status)
			assert.False(t, res.ScheduledAt.Valid)
		})
	}
}

func TestResolve_OneNonRetryableFailurePoisonsRetry(t *testing.T) {
	d := resolver(t)
	post := duePost(5, 7, platform.Mastodon, platform.Telegram)

	res := d.resolve(post, nil, []platform.Outcome{
		{Platform: platform.Mastodon, ErrorKind: platform.ErrTimeout},
		{Platform: platform.Telegram, ErrorKind: platform.ErrAuthExpired},
	}, testNow)

	assert.Equal(t, models.PostStatusFailed, res.Status)
}

func TestResolve_BackoffIncreasesThenCeilingFails(t *testing.T) {
	d := resolver(t)

	want := []time.Duration{5 * time.Minute, 20 * time.Minute, 60 * time.Minute}
	for retry, delay := range want {
		post := duePost(6, 7, platform.Mastodon)
		post.RetryCount = retry

		res := d.resolve(post, nil, []platform.Outcome{
			{Platform: platform.Mastodon, ErrorKind: platform.ErrTimeout},
		}, testNow)

		assert.Equal(t, models.PostStatusRescheduled, res.Status)
		assert.Equal(t, retry+1, res.RetryCount)
		assert.Equal(t, testNow.Add(delay), res.ScheduledAt.Time)
	}

	// Fourth consecutive retryable failure exhausts the budget.
	post := duePost(6, 7, platform.Mastodon)
	post.RetryCount = 3

	res := d.resolve(post, nil, []platform.Outcome{
		{Platform: platform.Mastodon, ErrorKind: platform.ErrTimeout},
	}, testNow)

	assert.Equal(t, models.PostStatusFailed, res.Status)
	assert.Equal(t, 3, res.RetryCount)
}

func TestResolve_PriorSuccessesCount(t *testing.T) {
	d := resolver(t)
	post := duePost(7, 7, platform.Mastodon, platform.Telegram)

	res := d.resolve(post, map[string]bool{platform.Mastodon: true}, []platform.Outcome{
		{Platform: platform.Telegram, Success: true},
	}, testNow)

	assert.Equal(t, models.PostStatusPublished, res.Status)
}

func TestResolve_NoTargetsFails(t *testing.T) {
	d := resolver(t)
	post := duePost(8, 7)

	res := d.resolve(post, nil, nil, testNow)

	assert.Equal(t, models.PostStatusFailed, res.Status)
}

func TestBackoffFor_ClampsToLastStep(t *testing.T) {
	d := resolver(t)

	assert.Equal(t, 60*time.Minute, d.backoffFor(7))
}
