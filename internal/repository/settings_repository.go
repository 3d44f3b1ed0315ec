package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/tanishq27/postloom/internal/models"
)

type SettingsRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*models.Settings, error)
	Upsert(ctx context.Context, s *models.Settings) error
}

type settingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) GetByUserID(ctx context.Context, userID int64) (*models.Settings, error) {
	query := `
		SELECT id, user_id, webhook_url, notify_on_failure, notify_on_success, default_timezone, created_at, updated_at
		FROM user_settings
		WHERE user_id = $1
	`
	row := r.db.QueryRowContext(ctx, query, userID)

	var s models.Settings
	err := row.Scan(&s.ID, &s.UserID, &s.WebhookURL, &s.NotifyOnFailure, &s.NotifyOnSuccess, &s.DefaultTimezone, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &s, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, s *models.Settings) error {
	query := `
		INSERT INTO user_settings (user_id, webhook_url, notify_on_failure, notify_on_success, default_timezone)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			webhook_url = EXCLUDED.webhook_url,
			notify_on_failure = EXCLUDED.notify_on_failure,
			notify_on_success = EXCLUDED.notify_on_success,
			default_timezone = EXCLUDED.default_timezone,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, s.UserID, s.WebhookURL, s.NotifyOnFailure, s.NotifyOnSuccess, s.DefaultTimezone)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
