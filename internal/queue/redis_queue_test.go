package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/afteryou/delivery/internal/apperr"
)

func newTestQueue(t *testing.T) (*miniredis.Miniredis, *RedisQueue) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewRedisQueue(rdb, "delivery:jobs")
}

func TestRedisQueue_ScheduleAt_DeterministicJobID(t *testing.T) {
	t.Parallel()

	mr, q := newTestQueue(t)
	ctx := context.Background()

	id := uuid.New()
	at := time.Now().Add(time.Hour)

	jobID, err := q.ScheduleAt(ctx, id, at)
	if err != nil {
		t.Fatalf("ScheduleAt() error: %v", err)
	}
	if jobID != "deliver:"+id.String() {
		t.Fatalf("unexpected job id: %q", jobID)
	}

	// Re-scheduling replaces the entry instead of duplicating it.
	if _, err := q.ScheduleAt(ctx, id, at.Add(time.Hour)); err != nil {
		t.Fatalf("second ScheduleAt() error: %v", err)
	}

	members, err := mr.ZMembers("delivery:jobs")
	if err != nil {
		t.Fatalf("ZMembers error: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected 1 queue entry after re-schedule, got %d", len(members))
	}
}

func TestRedisQueue_ClaimDue_ReturnsOnlyDueJobs(t *testing.T) {
	t.Parallel()

	_, q := newTestQueue(t)
	ctx := context.Background()
	now := time.Now()

	dueID := uuid.New()
	futureID := uuid.New()

	if _, err := q.ScheduleAt(ctx, dueID, now.Add(-time.Minute)); err != nil {
		t.Fatalf("ScheduleAt(due) error: %v", err)
	}
	if _, err := q.ScheduleAt(ctx, futureID, now.Add(time.Hour)); err != nil {
		t.Fatalf("ScheduleAt(future) error: %v", err)
	}

	ids, err := q.ClaimDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("ClaimDue() error: %v", err)
	}
	if len(ids) != 1 || ids[0] != dueID {
		t.Fatalf("expected only the due job, got %v", ids)
	}

	// The claim removed the entry; a second poll finds nothing.
	ids, err = q.ClaimDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("second ClaimDue() error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no jobs on second claim, got %v", ids)
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Depth() error: %v", err)
	}
	if depth != 1 {
		t.Fatalf("expected the future job to remain queued, got depth %d", depth)
	}
}

func TestRedisQueue_FailsFastWhenUnreachable(t *testing.T) {
	t.Parallel()

	mr, q := newTestQueue(t)
	mr.Close()

	_, err := q.EnqueueNow(context.Background(), uuid.New())
	if err == nil {
		t.Fatalf("expected error when redis is down")
	}
	if !apperr.IsCode(err, apperr.CodeQueueUnavailable) {
		t.Fatalf("expected %s, got %s (%v)", apperr.CodeQueueUnavailable, apperr.CodeOf(err), err)
	}
}

func TestJobID_RoundTrip(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	got, ok := MessageID(JobID(id))
	if !ok || got != id {
		t.Fatalf("expected round trip of %s, got %s ok=%v", id, got, ok)
	}

	if _, ok := MessageID("bogus"); ok {
		t.Fatalf("expected malformed job id to be rejected")
	}
	if _, ok := MessageID("deliver:not-a-uuid"); ok {
		t.Fatalf("expected non-uuid job id to be rejected")
	}
}

type recordingDeliverer struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (d *recordingDeliverer) Deliver(ctx context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, id)
	return nil
}

func (d *recordingDeliverer) delivered() []uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uuid.UUID(nil), d.ids...)
}

func TestWorker_Poll_DispatchesDueJobs(t *testing.T) {
	t.Parallel()

	_, q := newTestQueue(t)
	ctx := context.Background()

	first := uuid.New()
	second := uuid.New()
	if _, err := q.ScheduleAt(ctx, first, time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("ScheduleAt() error: %v", err)
	}
	if _, err := q.ScheduleAt(ctx, second, time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("ScheduleAt() error: %v", err)
	}

	d := &recordingDeliverer{}
	w := NewWorker(q, d, 10, 2)
	w.Poll(ctx)

	got := d.delivered()
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	seen := map[uuid.UUID]bool{got[0]: true, got[1]: true}
	if !seen[first] || !seen[second] {
		t.Fatalf("expected both jobs delivered, got %v", got)
	}
}
