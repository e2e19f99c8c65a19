// Package queue is the dispatch adapter between recorded schedule intent and
// the publisher: scheduling enqueues a delayed task, and the worker fires the
// publish when it comes due. Delivery is at-least-once, so the handler
// re-checks the draft before acting.
package queue

import (
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/threadflow/internal/repository"
	"github.com/maheshrc27/threadflow/internal/service"
)

const TaskTypePublishDraft = "publish:draft"

type PublishDraftPayload struct {
	DraftID string `json:"draft_id"`
	UserID  int64  `json:"user_id"`
}

type Queue struct {
	dr repository.DraftRepository
	ps service.PublishService
}

func NewQueue(dr repository.DraftRepository, ps service.PublishService) *Queue {
	return &Queue{dr: dr, ps: ps}
}

func EnqueuePublish(asynqClient *asynq.Client, payload PublishDraftPayload, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishDraft, taskPayload)

	_, err = asynqClient.Enqueue(task, asynq.ProcessIn(delay))
	if err != nil {
		return err
	}

	log.Printf("Publish task scheduled: %+v", payload)
	return nil
}
