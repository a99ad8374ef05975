package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InProcessQueue is the fallback backend for deployments without Redis.
// Jobs are plain timers, so they do not survive a restart; the due-message
// sweep covers that gap. Selected by configuration, never by failure
// discovery.
type InProcessQueue struct {
	deliverer Deliverer

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

func NewInProcessQueue(deliverer Deliverer) *InProcessQueue {
	return &InProcessQueue{
		deliverer: deliverer,
		timers:    make(map[string]*time.Timer),
	}
}

func (q *InProcessQueue) ScheduleAt(ctx context.Context, messageID uuid.UUID, at time.Time) (string, error) {
	jobID := JobID(messageID)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return jobID, nil
	}

	// Re-scheduling the same message replaces its timer.
	if old, ok := q.timers[jobID]; ok {
		old.Stop()
	}

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	q.timers[jobID] = time.AfterFunc(delay, func() {
		q.fire(jobID, messageID)
	})

	slog.Info("delivery job scheduled in-process", "job_id", jobID, "fire_in", delay.String())
	return jobID, nil
}

func (q *InProcessQueue) EnqueueNow(ctx context.Context, messageID uuid.UUID) (string, error) {
	return q.ScheduleAt(ctx, messageID, time.Now())
}

func (q *InProcessQueue) Depth(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.timers)), nil
}

func (q *InProcessQueue) Mode() string { return "inproc" }

// Stop cancels all outstanding timers. Messages stay scheduled in the
// store and are picked up by the sweep on the next start.
func (q *InProcessQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
}

func (q *InProcessQueue) fire(jobID string, messageID uuid.UUID) {
	q.mu.Lock()
	delete(q.timers, jobID)
	q.mu.Unlock()

	if err := q.deliverer.Deliver(context.Background(), messageID); err != nil {
		slog.Error("in-process delivery attempt failed", "job_id", jobID, "error", err)
	}
}
