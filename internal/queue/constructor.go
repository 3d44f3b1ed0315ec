package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/tanishq27/postloom/internal/platform"
)

// Notifier enqueues publish results for asynchronous webhook delivery.
// It satisfies the dispatcher's Notifier interface.
type Notifier struct {
	client *asynq.Client
}

func NewNotifier(client *asynq.Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) PublishResult(ctx context.Context, userID, postID int64, status string, outcomes []platform.Outcome) error {
	payload, err := json.Marshal(NotifyResultPayload{
		UserID:   userID,
		PostID:   postID,
		Status:   status,
		Outcomes: outcomes,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeNotifyResult, payload)

	_, err = n.client.EnqueueContext(ctx, task, asynq.MaxRetry(5))
	if err != nil {
		return err
	}

	slog.Info("result notification enqueued", "post_id", postID, "status", status)
	return nil
}
