package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tanishq27/postloom/internal/models"
)

type stubPostRepo struct {
	mock.Mock
}

func (m *stubPostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	args := m.Called(ctx, tx, post)
	return args.Get(0).(int64), args.Error(1)
}

func (m *stubPostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*models.Post), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *stubPostRepo) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	args := m.Called(ctx, userID)
	if p := args.Get(0); p != nil {
		return p.([]*models.Post), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *stubPostRepo) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	args := m.Called(ctx, postID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *stubPostRepo) UpdateSchedule(ctx context.Context, postID int64, status string, scheduledAt time.Time, tz string) error {
	args := m.Called(ctx, postID, status, scheduledAt, tz)
	return args.Error(0)
}

func (m *stubPostRepo) Archive(ctx context.Context, postID int64) error {
	args := m.Called(ctx, postID)
	return args.Error(0)
}

func (m *stubPostRepo) CountWithIntentInRange(ctx context.Context, userID int64, from, to time.Time) (int, error) {
	args := m.Called(ctx, userID, from, to)
	return args.Int(0), args.Error(1)
}

func (m *stubPostRepo) Remove(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *stubPostRepo) FindDue(ctx context.Context, now time.Time, claimTimeout time.Duration, limit int) ([]*models.Post, error) {
	args := m.Called(ctx, now, claimTimeout, limit)
	if p := args.Get(0); p != nil {
		return p.([]*models.Post), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *stubPostRepo) TryClaim(ctx context.Context, postID int64, expected sql.NullString, token string, now time.Time, claimTimeout time.Duration, statuses []string) (bool, error) {
	args := m.Called(ctx, postID, expected, token, now, claimTimeout, statuses)
	return args.Bool(0), args.Error(1)
}

func (m *stubPostRepo) SaveResult(ctx context.Context, postID int64, token string, res *models.PublishResult) error {
	args := m.Called(ctx, postID, token, res)
	return args.Error(0)
}

func (m *stubPostRepo) ReleaseClaim(ctx context.Context, postID int64, token string) error {
	args := m.Called(ctx, postID, token)
	return args.Error(0)
}

func TestArchive(t *testing.T) {
	ctx := context.Background()

	t.Run("UsesDedicatedArchiveWrite", func(t *testing.T) {
		// Archiving a scheduled post must go through the archive query,
		// which clears scheduled_at/schedule_tz along with the status. A
		// plain status update would leave a terminal post with a schedule.
		pr := new(stubPostRepo)
		pr.On("CheckByUserID", ctx, int64(7), int64(1)).Return(true, nil)
		pr.On("Archive", ctx, int64(7)).Return(nil)

		s := NewPostService(nil, pr, nil, nil, nil, 0, "")
		require.NoError(t, s.Archive(ctx, 1, 7))

		pr.AssertExpectations(t)
	})

	t.Run("OwnerMismatchLooksLikeMissingPost", func(t *testing.T) {
		pr := new(stubPostRepo)
		pr.On("CheckByUserID", ctx, int64(7), int64(2)).Return(false, nil)

		s := NewPostService(nil, pr, nil, nil, nil, 0, "")
		err := s.Archive(ctx, 2, 7)

		assert.ErrorIs(t, err, ErrPostNotFound)
		pr.AssertNotCalled(t, "Archive", mock.Anything, mock.Anything)
	})
}
