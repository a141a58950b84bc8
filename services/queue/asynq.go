// Package queuesvc runs background jobs on Redis via asynq.
package queuesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"

	"github.com/siwesng/slims/core"
)

const (
	maxRetry  = 3
	retention = time.Hour
)

type asynqQueue struct {
	client *asynq.Client
}

var _ core.JobQueue = (*asynqQueue)(nil)

func NewAsynqQueue(conf *core.Config) *asynqQueue {
	return &asynqQueue{
		client: asynq.NewClient(redisOpt(conf)),
	}
}

func (q *asynqQueue) Enqueue(ctx context.Context, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshaling job payload")
	}
	_, err = q.client.EnqueueContext(ctx, asynq.NewTask(jobType, data),
		asynq.MaxRetry(maxRetry),
		asynq.Retention(retention),
	)
	return errors.Wrap(err, "enqueueing job")
}

func (q *asynqQueue) Close() error {
	return q.client.Close()
}

func redisOpt(conf *core.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	}
}
