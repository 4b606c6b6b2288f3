package task

import "context"

// Queue serializes task execution for one adapter instance: at most one
// in-flight task, further invocations wait their turn rather than failing
// with a busy error.
type Queue struct {
	slot chan struct{}
}

func NewQueue() *Queue {
	return &Queue{slot: make(chan struct{}, 1)}
}

// Acquire blocks until the adapter is free or ctx is canceled.
func (q *Queue) Acquire(ctx context.Context) error {
	select {
	case q.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Release() {
	<-q.slot
}
