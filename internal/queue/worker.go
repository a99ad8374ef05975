package queue

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Worker drains due jobs from the Redis queue and dispatches them to the
// engine with bounded concurrency. It is driven by a scheduler tick.
type Worker struct {
	queue       *RedisQueue
	deliverer   Deliverer
	batchSize   int
	concurrency int
}

func NewWorker(q *RedisQueue, d Deliverer, batchSize, concurrency int) *Worker {
	return &Worker{
		queue:       q,
		deliverer:   d,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

// Poll claims one batch of due jobs and delivers them. Delivery failures
// are recorded on the message by the engine; only infrastructure errors
// surface here, and they are logged rather than retried (the sweep
// self-heals anything dropped).
func (w *Worker) Poll(ctx context.Context) {
	ids, err := w.queue.ClaimDue(ctx, time.Now(), w.batchSize)
	if err != nil {
		slog.Error("failed to claim due delivery jobs", "error", err)
	}
	if len(ids) == 0 {
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for _, id := range ids {
		g.Go(func() error {
			if err := w.deliverer.Deliver(ctx, id); err != nil {
				slog.Error("delivery attempt failed", "message_id", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("delivery batch dispatched", "jobs", len(ids))
}
