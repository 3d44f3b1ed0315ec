package service

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/tanishq27/postloom/internal/models"
	"github.com/tanishq27/postloom/internal/repository"
	"github.com/tanishq27/postloom/internal/transfer"
)

type SettingsService interface {
	GetSettingsInfo(ctx context.Context, userID int64) (*models.Settings, error)
	UpdateSettings(ctx context.Context, userID int64, su *transfer.SettingsUpdate) error
}

type settingsService struct {
	sr       repository.SettingsRepository
	validate *validator.Validate
}

func NewSettingsService(sr repository.SettingsRepository) SettingsService {
	return &settingsService{
		sr:       sr,
		validate: validator.New(),
	}
}

// GetSettingsInfo returns the user's settings, or defaults for a user who
// never saved any.
func (s *settingsService) GetSettingsInfo(ctx context.Context, userID int64) (*models.Settings, error) {
	settings, err := s.sr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return &models.Settings{
			UserID:          userID,
			NotifyOnFailure: true,
			DefaultTimezone: "UTC",
		}, nil
	}
	return settings, nil
}

func (s *settingsService) UpdateSettings(ctx context.Context, userID int64, su *transfer.SettingsUpdate) error {
	if err := s.validate.Struct(su); err != nil {
		slog.Info(err.Error())
		return err
	}

	settings := models.Settings{
		UserID:          userID,
		WebhookURL:      su.WebhookURL,
		NotifyOnFailure: su.NotifyOnFailure,
		NotifyOnSuccess: su.NotifyOnSuccess,
		DefaultTimezone: su.DefaultTimezone,
	}
	return s.sr.Upsert(ctx, &settings)
}
