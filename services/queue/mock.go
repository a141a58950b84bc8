package queuesvc

import (
	"context"
	"sync"

	"github.com/siwesng/slims/core"
)

// QueuedJob records one Enqueue call on the mock.
type QueuedJob struct {
	Type    string
	Payload interface{}
}

// QueueMock records jobs instead of dispatching them.
type QueueMock struct {
	mu   sync.Mutex
	jobs []QueuedJob
}

var _ core.JobQueue = (*QueueMock)(nil)

func NewQueueMock() *QueueMock {
	return &QueueMock{}
}

func (q *QueueMock) Enqueue(_ context.Context, jobType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, QueuedJob{Type: jobType, Payload: payload})
	return nil
}

func (q *QueueMock) Jobs() []QueuedJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	jobs := make([]QueuedJob, len(q.jobs))
	copy(jobs, q.jobs)
	return jobs
}
