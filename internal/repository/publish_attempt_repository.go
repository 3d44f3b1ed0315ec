package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/tanishq27/postloom/internal/models"
)

type PublishAttemptRepository interface {
	Create(ctx context.Context, attempt *models.PublishAttempt) (int64, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PublishAttempt, error)
	LatestPerPlatform(ctx context.Context, postID int64) ([]*models.PublishAttempt, error)
}

type publishAttemptRepository struct {
	db *sql.DB
}

func NewPublishAttemptRepository(db *sql.DB) PublishAttemptRepository {
	return &publishAttemptRepository{db: db}
}

const attemptColumns = `id, user_id, post_id, platform, success, external_post_id, error_kind, error_message, automatic, created_at`

func scanAttempt(row interface{ Scan(...interface{}) error }) (*models.PublishAttempt, error) {
	var a models.PublishAttempt
	err := row.Scan(&a.ID, &a.UserID, &a.PostID, &a.Platform, &a.Success,
		&a.ExternalPostID, &a.ErrorKind, &a.ErrorMessage, &a.Automatic, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create appends one attempt record. Rows are never updated afterwards;
// a retry is always a new row.
func (r *publishAttemptRepository) Create(ctx context.Context, attempt *models.PublishAttempt) (int64, error) {
	query := `
		INSERT INTO publish_attempts (user_id, post_id, platform, success, external_post_id, error_kind, error_message, automatic)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, attempt.UserID, attempt.PostID, attempt.Platform,
		attempt.Success, attempt.ExternalPostID, attempt.ErrorKind, attempt.ErrorMessage,
		attempt.Automatic).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *publishAttemptRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PublishAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM publish_attempts WHERE post_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.PublishAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// LatestPerPlatform returns the most recent attempt for each platform the
// post was ever sent to. The manual gateway recomputes the aggregate post
// status from this view.
func (r *publishAttemptRepository) LatestPerPlatform(ctx context.Context, postID int64) ([]*models.PublishAttempt, error) {
	query := `
		SELECT DISTINCT ON (platform) ` + attemptColumns + `
		FROM publish_attempts
		WHERE post_id = $1
		ORDER BY platform, created_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.PublishAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
