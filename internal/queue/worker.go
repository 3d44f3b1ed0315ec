package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/tanishq27/postloom/internal/models"
)

// HandleNotifyResultTask delivers one publish result to the author's
// configured webhook. Missing settings or an empty webhook URL complete
// the task silently; a non-2xx response returns an error so asynq retries.
func (q *Queue) HandleNotifyResultTask(ctx context.Context, task *asynq.Task) error {
	var payload NotifyResultPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	settings, err := q.settings.GetByUserID(ctx, payload.UserID)
	if err != nil {
		return err
	}
	if settings == nil || settings.WebhookURL == "" {
		return nil
	}
	if !wantsNotification(settings, payload.Status) {
		return nil
	}

	resp, err := q.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(settings.WebhookURL)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned %d", resp.StatusCode())
	}

	slog.Info("result notification delivered", "post_id", payload.PostID, "status", payload.Status)
	return nil
}

func wantsNotification(settings *models.Settings, status string) bool {
	if status == models.PostStatusPublished {
		return settings.NotifyOnSuccess
	}
	return settings.NotifyOnFailure
}
