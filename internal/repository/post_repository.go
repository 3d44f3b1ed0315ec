package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/tanishq27/postloom/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	UpdateSchedule(ctx context.Context, postID int64, status string, scheduledAt time.Time, tz string) error
	Archive(ctx context.Context, postID int64) error
	CountWithIntentInRange(ctx context.Context, userID int64, from, to time.Time) (int, error)
	Remove(ctx context.Context, id int64) error

	// Claim protocol. FindDue only reads candidates; TryClaim is the single
	// atomic conditional write that serializes concurrent dispatchers.
	FindDue(ctx context.Context, now time.Time, claimTimeout time.Duration, limit int) ([]*models.Post, error)
	TryClaim(ctx context.Context, postID int64, expected sql.NullString, token string, now time.Time, claimTimeout time.Duration, statuses []string) (bool, error)
	SaveResult(ctx context.Context, postID int64, token string, res *models.PublishResult) error
	ReleaseClaim(ctx context.Context, postID int64, token string) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, caption, hashtags, media_asset_id, targets, scheduled_at, schedule_tz, status, retry_count, claim_token, claimed_at, posted_at, created_at, updated_at`

func scanPost(row interface{ Scan(...interface{}) error }) (*models.Post, error) {
	var post models.Post
	err := row.Scan(&post.ID, &post.UserID, &post.Caption, pq.Array(&post.Hashtags),
		&post.MediaAssetID, pq.Array(&post.Targets), &post.ScheduledAt, &post.ScheduleTZ,
		&post.Status, &post.RetryCount, &post.ClaimToken, &post.ClaimedAt, &post.PostedAt,
		&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, caption, hashtags, media_asset_id, targets, scheduled_at, schedule_tz, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	var err error

	args := []interface{}{post.UserID, post.Caption, pq.Array(post.Hashtags),
		post.MediaAssetID, pq.Array(post.Targets), post.ScheduledAt, post.ScheduleTZ, post.Status}

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := "SELECT 1 FROM posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

// UpdateSchedule is the authoring-side transition into scheduled: it
// attaches a new schedule and resets the automatic retry counter.
func (r *postRepository) UpdateSchedule(ctx context.Context, postID int64, status string, scheduledAt time.Time, tz string) error {
	query := `
		UPDATE posts
		SET status = $1, scheduled_at = $2, schedule_tz = $3, retry_count = 0, updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, status, scheduledAt, tz, time.Now().UTC(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Archive moves a post to the archived terminal status. The schedule,
// retry counter and claim are cleared in the same write, so an archived
// row never carries a scheduled_at.
func (r *postRepository) Archive(ctx context.Context, postID int64) error {
	query := `
		UPDATE posts
		SET status = $1, scheduled_at = NULL, schedule_tz = NULL, retry_count = 0,
			claim_token = NULL, claimed_at = NULL, updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusArchived, time.Now().UTC(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// CountWithIntentInRange counts the user's posts created in [from, to)
// that carry a publishing intent (non-empty targets). Used by the
// authoring-time quota check only.
func (r *postRepository) CountWithIntentInRange(ctx context.Context, userID int64, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM posts
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		AND cardinality(targets) > 0
	`
	var count int
	err := r.db.QueryRowContext(ctx, query, userID, from, to).Scan(&count)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return count, nil
}

func (r *postRepository) FindDue(ctx context.Context, now time.Time, claimTimeout time.Duration, limit int) ([]*models.Post, error) {
	query := `
		SELECT ` + postColumns + ` FROM posts
		WHERE status = ANY($1)
		AND scheduled_at <= $2
		AND (claim_token IS NULL OR claimed_at < $3)
		ORDER BY scheduled_at ASC
		LIMIT $4
	`
	cutoff := now.Add(-claimTimeout)
	rows, err := r.db.QueryContext(ctx, query, pq.Array(models.DueStatuses), now, cutoff, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// TryClaim is the single point of mutual exclusion between dispatcher
// workers. It is one conditional UPDATE: the row is claimed only if its
// claim fields still hold the value the caller read (IS NOT DISTINCT FROM
// treats two NULLs as equal) and any existing claim has gone stale.
func (r *postRepository) TryClaim(ctx context.Context, postID int64, expected sql.NullString, token string, now time.Time, claimTimeout time.Duration, statuses []string) (bool, error) {
	query := `
		UPDATE posts
		SET claim_token = $1, claimed_at = $2, updated_at = $2
		WHERE id = $3
		AND status = ANY($4)
		AND claim_token IS NOT DISTINCT FROM $5
		AND (claim_token IS NULL OR claimed_at < $6)
	`
	cutoff := now.Add(-claimTimeout)
	result, err := r.db.ExecContext(ctx, query, token, now, postID, pq.Array(statuses), expected, cutoff)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

// SaveResult commits the cycle outcome and releases the claim in one
// statement, so a crash can never leave a new status with a live claim or
// a cleared claim without the status. The token condition limits the write
// to the claim holder; a post archived mid-cycle keeps its archived status.
func (r *postRepository) SaveResult(ctx context.Context, postID int64, token string, res *models.PublishResult) error {
	query := `
		UPDATE posts
		SET status = $1, scheduled_at = $2, schedule_tz = $3, retry_count = $4,
			posted_at = COALESCE(posted_at, $5),
			claim_token = NULL, claimed_at = NULL, updated_at = $6
		WHERE id = $7 AND claim_token = $8 AND status <> 'archived'
	`
	result, err := r.db.ExecContext(ctx, query, res.Status, res.ScheduledAt, res.ScheduleTZ,
		res.RetryCount, res.PostedAt, time.Now().UTC(), postID, token)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected == 0 {
		slog.Warn("publish result dropped: claim no longer held", "post_id", postID)
		return ErrClaimLost
	}
	return nil
}

// ReleaseClaim frees a claim without changing post state. Used when a
// claimed post turns out to have nothing to do.
func (r *postRepository) ReleaseClaim(ctx context.Context, postID int64, token string) error {
	query := `
		UPDATE posts
		SET claim_token = NULL, claimed_at = NULL, updated_at = $1
		WHERE id = $2 AND claim_token = $3
	`
	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), postID, token)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
