package dispatcher

import (
	"context"
	"database/sql"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tanishq27/postloom/internal/models"
	"github.com/tanishq27/postloom/internal/platform"
)

type mockPostRepo struct {
	mock.Mock
}

func (m *mockPostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	args := m.Called(ctx, tx, post)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *mockPostRepo) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *mockPostRepo) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	args := m.Called(ctx, postID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockPostRepo) UpdateSchedule(ctx context.Context, postID int64, status string, scheduledAt time.Time, tz string) error {
	args := m.Called(ctx, postID, status, scheduledAt, tz)
	return args.Error(0)
}

func (m *mockPostRepo) Archive(ctx context.Context, postID int64) error {
	args := m.Called(ctx, postID)
	return args.Error(0)
}

func (m *mockPostRepo) CountWithIntentInRange(ctx context.Context, userID int64, from, to time.Time) (int, error) {
	args := m.Called(ctx, userID, from, to)
	return args.Int(0), args.Error(1)
}

func (m *mockPostRepo) Remove(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockPostRepo) FindDue(ctx context.Context, now time.Time, claimTimeout time.Duration, limit int) ([]*models.Post, error) {
	args := m.Called(ctx, now, claimTimeout, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *mockPostRepo) TryClaim(ctx context.Context, postID int64, expected sql.NullString, token string, now time.Time, claimTimeout time.Duration, statuses []string) (bool, error) {
	args := m.Called(ctx, postID, expected, token, now, claimTimeout, statuses)
	return args.Bool(0), args.Error(1)
}

func (m *mockPostRepo) SaveResult(ctx context.Context, postID int64, token string, res *models.PublishResult) error {
	args := m.Called(ctx, postID, token, res)
	return args.Error(0)
}

func (m *mockPostRepo) ReleaseClaim(ctx context.Context, postID int64, token string) error {
	args := m.Called(ctx, postID, token)
	return args.Error(0)
}

type mockAccountRepo struct {
	mock.Mock
}

func (m *mockAccountRepo) Create(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error) {
	args := m.Called(ctx, tx, sa)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockAccountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SocialAccount), args.Error(1)
}

func (m *mockAccountRepo) GetActive(ctx context.Context, userID int64, platformName string) (*models.SocialAccount, error) {
	args := m.Called(ctx, userID, platformName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SocialAccount), args.Error(1)
}

func (m *mockAccountRepo) ListInfoByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SocialAccount), args.Error(1)
}

func (m *mockAccountRepo) ListExpiring(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	args := m.Called(ctx, initialTime, finalTime)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SocialAccount), args.Error(1)
}

func (m *mockAccountRepo) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	args := m.Called(ctx, accountID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccountRepo) SetToken(ctx context.Context, userID int64, oldAccessToken string, sa *models.SocialAccount) error {
	args := m.Called(ctx, userID, oldAccessToken, sa)
	return args.Error(0)
}

func (m *mockAccountRepo) SetStatus(ctx context.Context, id int64, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockAccountRepo) Remove(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockAttemptRepo struct {
	mock.Mock
}

func (m *mockAttemptRepo) Create(ctx context.Context, attempt *models.PublishAttempt) (int64, error) {
	args := m.Called(ctx, attempt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockAttemptRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PublishAttempt, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PublishAttempt), args.Error(1)
}

func (m *mockAttemptRepo) LatestPerPlatform(ctx context.Context, postID int64) ([]*models.PublishAttempt, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PublishAttempt), args.Error(1)
}

type mockAssetRepo struct {
	mock.Mock
}

func (m *mockAssetRepo) Create(ctx context.Context, tx *sql.Tx, ma *models.MediaAsset) (int64, error) {
	args := m.Called(ctx, tx, ma)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockAssetRepo) GetByID(ctx context.Context, id int64) (*models.MediaAsset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MediaAsset), args.Error(1)
}

func (m *mockAssetRepo) CheckByUserID(ctx context.Context, assetID, userID int64) (bool, error) {
	args := m.Called(ctx, assetID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockAssetRepo) Remove(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) PublishResult(ctx context.Context, userID, postID int64, status string, outcomes []platform.Outcome) error {
	args := m.Called(ctx, userID, postID, status, outcomes)
	return args.Error(0)
}

// stubAdapter returns a fixed outcome and counts its calls.
type stubAdapter struct {
	name    string
	outcome platform.Outcome
	calls   int
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) Publish(ctx context.Context, req platform.Request) platform.Outcome {
	a.calls++
	out := a.outcome
	out.Platform = a.name
	return out
}
