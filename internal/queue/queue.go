// Package queue carries publish results out of the dispatch path. Results
// are enqueued as asynq tasks and delivered to the author's webhook by a
// background worker, so a slow or dead webhook endpoint never stalls a
// dispatch cycle.
package queue

import (
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tanishq27/postloom/internal/platform"
	"github.com/tanishq27/postloom/internal/repository"
)

const TaskTypeNotifyResult = "notify:publish_result"

type NotifyResultPayload struct {
	UserID   int64              `json:"user_id"`
	PostID   int64              `json:"post_id"`
	Status   string             `json:"status"`
	Outcomes []platform.Outcome `json:"outcomes"`
}

type Queue struct {
	settings repository.SettingsRepository
	client   *resty.Client
}

func NewQueue(settings repository.SettingsRepository) *Queue {
	return &Queue{
		settings: settings,
		client:   resty.New().SetTimeout(15 * time.Second),
	}
}
