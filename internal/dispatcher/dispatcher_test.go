package dispatcher

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	config "github.com/tanishq27/postloom/configs"
	"github.com/tanishq27/postloom/internal/models"
	"github.com/tanishq27/postloom/internal/platform"
	"github.com/tanishq27/postloom/pkg/utils"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func testConfig() config.Dispatcher {
	return config.Dispatcher{
		PollInterval:       time.Minute,
		BatchSize:          50,
		ClaimTimeout:       5 * time.Minute,
		AdapterTimeout:     time.Second,
		MaxConcurrentPosts: 4,
		MaxAutoRetries:     3,
		RetryBackoff:       []time.Duration{5 * time.Minute, 20 * time.Minute, 60 * time.Minute},
	}
}

type testEnv struct {
	d        *Dispatcher
	posts    *mockPostRepo
	accounts *mockAccountRepo
	attempts *mockAttemptRepo
	assets   *mockAssetRepo
	notifier *mockNotifier
}

func newTestEnv(t *testing.T, adapters ...platform.Adapter) *testEnv {
	t.Helper()

	env := &testEnv{
		posts:    new(mockPostRepo),
		accounts: new(mockAccountRepo),
		attempts: new(mockAttemptRepo),
		assets:   new(mockAssetRepo),
		notifier: new(mockNotifier),
	}
	env.d = New(testConfig(), testSecret,
		env.posts, env.accounts, env.attempts, env.assets,
		platform.NewRegistry(adapters...), env.notifier)
	env.d.now = func() time.Time { return testNow }
	return env
}

func testAccount(t *testing.T, userID int64, platformName string) *models.SocialAccount {
	t.Helper()

	enc, err := utils.Encrypt([]byte("access-token"), testSecret)
	require.NoError(t, err)

	return &models.SocialAccount{
		ID:            1,
		UserID:        userID,
		Platform:      platformName,
		AccountID:     "acct-1",
		AccessToken:   enc,
		AccountStatus: models.AccountStatusActive,
	}
}

func duePost(id, userID int64, targets ...string) *models.Post {
	return &models.Post{
		ID:          id,
		UserID:      userID,
		Caption:     "hello",
		Targets:     targets,
		Status:      models.PostStatusScheduled,
		ScheduledAt: sql.NullTime{Time: testNow.Add(-time.Minute), Valid: true},
		ScheduleTZ:  sql.NullString{String: "Europe/Berlin", Valid: true},
	}
}

func TestRunCycle_SingleTargetSuccess(t *testing.T) {
	mastodon := &stubAdapter{name: platform.Mastodon, outcome: platform.Outcome{Success: true, ExternalPostID: "m-1"}}
	env := newTestEnv(t, mastodon)
	cfg := testConfig()

	post := duePost(10, 7, platform.Mastodon)

	env.posts.On("FindDue", mock.Anything, testNow, cfg.ClaimTimeout, cfg.BatchSize).
		Return([]*models.Post{post}, nil)
	env.posts.On("TryClaim", mock.Anything, post.ID, post.ClaimToken, mock.AnythingOfType("string"), testNow, cfg.ClaimTimeout, models.DueStatuses).
		Return(true, nil)
	env.attempts.On("LatestPerPlatform", mock.Anything, post.ID).
		Return([]*models.PublishAttempt{}, nil)
	env.accounts.On("GetActive", mock.Anything, post.UserID, platform.Mastodon).
		Return(testAccount(t, post.UserID, platform.Mastodon), nil)
	env.attempts.On("Create", mock.Anything, mock.MatchedBy(func(a *models.PublishAttempt) bool {
		return a.PostID == post.ID && a.Platform == platform.Mastodon &&
			a.Success && a.ExternalPostID == "m-1" && a.Automatic
	})).Return(int64(1), nil)
	env.posts.On("SaveResult", mock.Anything, post.ID, mock.AnythingOfType("string"), mock.MatchedBy(func(res *models.PublishResult) bool {
		return res.Status == models.PostStatusPublished &&
			res.PostedAt.Valid && res.PostedAt.Time.Equal(testNow) &&
			!res.ScheduledAt.Valid && res.RetryCount == 0
	})).Return(nil)
	env.notifier.On("PublishResult", mock.Anything, post.UserID, post.ID, models.PostStatusPublished, mock.Anything).
		Return(nil)

	err := env.d.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, mastodon.calls)
	env.posts.AssertExpectations(t)
	env.attempts.AssertExpectations(t)
	env.notifier.AssertExpectations(t)
}

func TestRunCycle_MixedOutcomeIsPartiallyPublished(t *testing.T) {
	mastodon := &stubAdapter{name: platform.Mastodon, outcome: platform.Outcome{Success: true, ExternalPostID: "m-2"}}
	telegram := &stubAdapter{name: platform.Telegram, outcome: platform.Outcome{
		ErrorKind: platform.ErrRateLimited, ErrorMessage: "retry after 30",
	}}
	env := newTestEnv(t, mastodon, telegram)

	post := duePost(11, 7, platform.Mastodon, platform.Telegram)

	env.posts.On("FindDue", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*models.Post{post}, nil)
	env.posts.On("TryClaim", mock.Anything, post.ID, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(true, nil)
	env.attempts.On("LatestPerPlatform", mock.Anything, post.ID).
		Return([]*models.PublishAttempt{}, nil)
	env.accounts.On("GetActive", mock.Anything, post.UserID, platform.Mastodon).
		Return(testAccount(t, post.UserID, platform.Mastodon), nil)
	env.accounts.On("GetActive", mock.Anything, post.UserID, platform.Telegram).
		Return(testAccount(t, post.UserID, platform.Telegram), nil)
	env.attempts.On("Create", mock.Anything, mock.Anything).Return(int64(1), nil)
	env.posts.On("SaveResult", mock.Anything, post.ID, mock.Anything, mock.MatchedBy(func(res *models.PublishResult) bool {
		return res.Status == models.PostStatusPartiallyPublished &&
			res.PostedAt.Valid && res.RetryCount == 0 && !res.ScheduledAt.Valid
	})).Return(nil)
	env.notifier.On("PublishResult", mock.Anything, post.UserID, post.ID, models.PostStatusPartiallyPublished, mock.Anything).
		Return(nil)

	err := env.d.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, mastodon.calls)
	assert.Equal(t, 1, telegram.calls)
	env.posts.AssertExpectations(t)
	env.attempts.AssertNumberOfCalls(t, "Create", 2)
}

func TestRunCycle_MissingAccountSkipsNetworkCall(t *testing.T) {
	facebook := &stubAdapter{name: platform.Facebook, outcome: platform.Outcome{Success: true}}
	env := newTestEnv(t, facebook)

	post := duePost(12, 7, platform.Facebook)

	env.posts.On("FindDue", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*models.Post{post}, nil)
	env.posts.On("TryClaim", mock.Anything, post.ID, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(true, nil)
	env.attempts.On("LatestPerPlatform", mock.Anything, post.ID).
		Return([]*models.PublishAttempt{}, nil)
	env.accounts.On("GetActive", mock.Anything, post.UserID, platform.Facebook).
		Return(nil, nil)
	env.attempts.On("Create", mock.Anything, mock.MatchedBy(func(a *models.PublishAttempt) bool {
		return !a.Success && a.ErrorKind == string(platform.ErrAccountUnavailable)
	})).Return(int64(1), nil)
	env.posts.On("SaveResult", mock.Anything, post.ID, mock.Anything, mock.MatchedBy(func(res *models.PublishResult) bool {
		return res.Status == models.PostStatusRescheduled &&
			res.RetryCount == 1 &&
			res.ScheduledAt.Valid && res.ScheduledAt.Time.Equal(testNow.Add(5*time.Minute))
	})).Return(nil)
	env.notifier.On("PublishResult", mock.Anything, post.UserID, post.ID, models.PostStatusRescheduled, mock.Anything).
		Return(nil)

	err := env.d.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, facebook.calls)
	env.posts.AssertExpectations(t)
}

func TestRunCycle_LostClaimSkipsPost(t *testing.T) {
	mastodon := &stubAdapter{name: platform.Mastodon, outcome: platform.Outcome{Success: true}}
	env := newTestEnv(t, mastodon)

	post := duePost(13, 7, platform.Mastodon)

	env.posts.On("FindDue", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*models.Post{post}, nil)
	env.posts.On("TryClaim", mock.Anything, post.ID, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(false, nil)

	err := env.d.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, mastodon.calls)
	env.posts.AssertNotCalled(t, "SaveResult", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	env.attempts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRunCycle_NeverResendsToSucceededPlatform(t *testing.T) {
	mastodon := &stubAdapter{name: platform.Mastodon, outcome: platform.Outcome{Success: true}}
	telegram := &stubAdapter{name: platform.Telegram, outcome: platform.Outcome{Success: true, ExternalPostID: "t-9"}}
	env := newTestEnv(t, mastodon, telegram)

	post := duePost(14, 7, platform.Mastodon, platform.Telegram)
	post.RetryCount = 1

	env.posts.On("FindDue", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*models.Post{post}, nil)
	env.posts.On("TryClaim", mock.Anything, post.ID, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(true, nil)
	env.attempts.On("LatestPerPlatform", mock.Anything, post.ID).
		Return([]*models.PublishAttempt{
			{PostID: post.ID, Platform: platform.Mastodon, Success: true},
			{PostID: post.ID, Platform: platform.Telegram, Success: false, ErrorKind: string(platform.ErrTimeout)},
		}, nil)
	env.accounts.On("GetActive", mock.Anything, post.UserID, platform.Telegram).
		Return(testAccount(t, post.UserID, platform.Telegram), nil)
	env.attempts.On("Create", mock.Anything, mock.MatchedBy(func(a *models.PublishAttempt) bool {
		return a.Platform == platform.Telegram && a.Success
	})).Return(int64(1), nil)
	env.posts.On("SaveResult", mock.Anything, post.ID, mock.Anything, mock.MatchedBy(func(res *models.PublishResult) bool {
		return res.Status == models.PostStatusPublished
	})).Return(nil)
	env.notifier.On("PublishResult", mock.Anything, post.UserID, post.ID, models.PostStatusPublished, mock.Anything).
		Return(nil)

	err := env.d.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, mastodon.calls, "succeeded platform must not be re-sent")
	assert.Equal(t, 1, telegram.calls)
	env.posts.AssertExpectations(t)
}

func TestRunCycle_EmptyScanIsNoOp(t *testing.T) {
	env := newTestEnv(t)

	env.posts.On("FindDue", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*models.Post{}, nil)

	err := env.d.RunCycle(context.Background())

	require.NoError(t, err)
	env.posts.AssertNotCalled(t, "TryClaim", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishOne_AdapterTimeoutClassified(t *testing.T) {
	env := newTestEnv(t, &blockingAdapter{name: platform.Mastodon})

	post := duePost(15, 7, platform.Mastodon)
	env.accounts.On("GetActive", mock.Anything, post.UserID, platform.Mastodon).
		Return(testAccount(t, post.UserID, platform.Mastodon), nil)

	env.d.cfg.AdapterTimeout = 10 * time.Millisecond

	out := env.d.publishOne(context.Background(), post, platform.Mastodon)

	assert.False(t, out.Success)
	assert.Equal(t, platform.ErrTimeout, out.ErrorKind)
}

// blockingAdapter waits for its call context to expire, like a hung
// upstream would.
type blockingAdapter struct {
	name string
}

func (a *blockingAdapter) Name() string { return a.name }

func (a *blockingAdapter) Publish(ctx context.Context, req platform.Request) platform.Outcome {
	<-ctx.Done()
	return platform.Outcome{
		Platform:     a.name,
		ErrorKind:    platform.KindFromError(ctx.Err()),
		ErrorMessage: ctx.Err().Error(),
	}
}
