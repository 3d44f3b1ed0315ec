package dispatcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tanishq27/postloom/internal/models"
	"github.com/tanishq27/postloom/internal/platform"
)

func TestPostNow_OwnerMismatchLooksLikeMissingPost(t *testing.T) {
	env := newTestEnv(t)
	g := NewGateway(env.d)

	post := duePost(20, 7, platform.Mastodon)
	env.posts.On("GetByID", mock.Anything, post.ID).Return(post, nil)

	_, err := g.PostNow(context.Background(), 99, post.ID, platform.Mastodon)

	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestPostNow_DraftIsNotPublishable(t *testing.T) {
	env := newTestEnv(t)
	g := NewGateway(env.d)

	post := duePost(21, 7, platform.Mastodon)
	post.Status = models.PostStatusDraft
	env.posts.On("GetByID", mock.Anything, post.ID).Return(post, nil)

	_, err := g.PostNow(context.Background(), post.UserID, post.ID, platform.Mastodon)

	assert.ErrorIs(t, err, ErrNotPublishable)
}

func TestPostNow_PlatformMustBeATarget(t *testing.T) {
	env := newTestEnv(t)
	g := NewGateway(env.d)

	post := duePost(22, 7, platform.Mastodon)
	env.posts.On("GetByID", mock.Anything, post.ID).Return(post, nil)

	_, err := g.PostNow(context.Background(), post.UserID, post.ID, platform.Telegram)

	assert.ErrorIs(t, err, ErrNotTargeted)
}

func TestPostNow_ClaimConflictIsReported(t *testing.T) {
	env := newTestEnv(t, &stubAdapter{name: platform.Mastodon})
	g := NewGateway(env.d)

	post := duePost(23, 7, platform.Mastodon)
	env.posts.On("GetByID", mock.Anything, post.ID).Return(post, nil)
	env.posts.On("TryClaim", mock.Anything, post.ID, mock.Anything, mock.Anything, mock.Anything, mock.Anything, models.ManualPublishStatuses).
		Return(false, nil)

	_, err := g.PostNow(context.Background(), post.UserID, post.ID, platform.Mastodon)

	assert.ErrorIs(t, err, ErrPublishInProgress)
	env.attempts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPostNow_SucceededPlatformIsNeverResent(t *testing.T) {
	mastodon := &stubAdapter{name: platform.Mastodon, outcome: platform.Outcome{Success: true}}
	env := newTestEnv(t, mastodon)
	g := NewGateway(env.d)

	post := duePost(24, 7, platform.Mastodon, platform.Telegram)
	post.Status = models.PostStatusPartiallyPublished
	post.ScheduledAt.Valid = false

	env.posts.On("GetByID", mock.Anything, post.ID).Return(post, nil)
	env.posts.On("TryClaim", mock.Anything, post.ID, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(true, nil)
	env.attempts.On("LatestPerPlatform", mock.Anything, post.ID).
		Return([]*models.PublishAttempt{
			{PostID: post.ID, Platform: platform.Mastodon, Success: true},
		}, nil)
	env.posts.On("ReleaseClaim", mock.Anything, post.ID, mock.AnythingOfType("string")).Return(nil)

	_, err := g.PostNow(context.Background(), post.UserID, post.ID, platform.Mastodon)

	assert.ErrorIs(t, err, ErrAlreadyPublished)
	assert.Equal(t, 0, mastodon.calls)
	env.posts.AssertCalled(t, "ReleaseClaim", mock.Anything, post.ID, mock.AnythingOfType("string"))
}

func TestPostNow_UpgradesPartialToPublished(t *testing.T) {
	telegram := &stubAdapter{name: platform.Telegram, outcome: platform.Outcome{Success: true, ExternalPostID: "t-1"}}
	env := newTestEnv(t, telegram)
	g := NewGateway(env.d)

	post := duePost(25, 7, platform.Mastodon, platform.Telegram)
	post.Status = models.PostStatusPartiallyPublished
	post.ScheduledAt.Valid = false

	env.posts.On("GetByID", mock.Anything, post.ID).Return(post, nil)
	env.posts.On("TryClaim", mock.Anything, post.ID, mock.Anything, mock.Anything, mock.Anything, mock.Anything, models.ManualPublishStatuses).
		Return(true, nil)
	env.attempts.On("LatestPerPlatform", mock.Anything, post.ID).
		Return([]*models.PublishAttempt{
			{PostID: post.ID, Platform: platform.Mastodon, Success: true},
			{PostID: post.ID, Platform: platform.Telegram, Success: false, ErrorKind: string(platform.ErrRateLimited)},
		}, nil)
	env.accounts.On("GetActive", mock.Anything, post.UserID, platform.Telegram).
		Return(testAccount(t, post.UserID, platform.Telegram), nil)
	env.attempts.On("Create", mock.Anything, mock.MatchedBy(func(a *models.PublishAttempt) bool {
		return a.Platform == platform.Telegram && a.Success && !a.Automatic
	})).Return(int64(2), nil)
	env.posts.On("SaveResult", mock.Anything, post.ID, mock.AnythingOfType("string"), mock.MatchedBy(func(res *models.PublishResult) bool {
		return res.Status == models.PostStatusPublished && res.PostedAt.Valid && !res.ScheduledAt.Valid
	})).Return(nil)
	env.notifier.On("PublishResult", mock.Anything, post.UserID, post.ID, models.PostStatusPublished, mock.Anything).
		Return(nil)

	out, err := g.PostNow(context.Background(), post.UserID, post.ID, platform.Telegram)

	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 1, telegram.calls)
	env.posts.AssertExpectations(t)
	env.attempts.AssertExpectations(t)
}

func TestPostNow_FailedAttemptNeverReschedules(t *testing.T) {
	mastodon := &stubAdapter{name: platform.Mastodon, outcome: platform.Outcome{
		ErrorKind: platform.ErrRateLimited, ErrorMessage: "slow down",
	}}
	env := newTestEnv(t, mastodon)
	g := NewGateway(env.d)

	post := duePost(26, 7, platform.Mastodon)
	post.Status = models.PostStatusFailed
	post.ScheduledAt.Valid = false

	env.posts.On("GetByID", mock.Anything, post.ID).Return(post, nil)
	env.posts.On("TryClaim", mock.Anything, post.ID, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(true, nil)
	env.attempts.On("LatestPerPlatform", mock.Anything, post.ID).
		Return([]*models.PublishAttempt{}, nil)
	env.accounts.On("GetActive", mock.Anything, post.UserID, platform.Mastodon).
		Return(testAccount(t, post.UserID, platform.Mastodon), nil)
	env.attempts.On("Create", mock.Anything, mock.MatchedBy(func(a *models.PublishAttempt) bool {
		return !a.Success && !a.Automatic
	})).Return(int64(3), nil)
	env.posts.On("SaveResult", mock.Anything, post.ID, mock.AnythingOfType("string"), mock.MatchedBy(func(res *models.PublishResult) bool {
		return res.Status == models.PostStatusFailed &&
			!res.ScheduledAt.Valid && res.RetryCount == post.RetryCount
	})).Return(nil)
	env.notifier.On("PublishResult", mock.Anything, post.UserID, post.ID, models.PostStatusFailed, mock.Anything).
		Return(nil)

	out, err := g.PostNow(context.Background(), post.UserID, post.ID, platform.Mastodon)

	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, platform.ErrRateLimited, out.ErrorKind)
	env.posts.AssertExpectations(t)
}
