package queue

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/afteryou/delivery/internal/apperr"
)

// RedisQueue keeps jobs in a sorted set scored by fire time. Because job
// ids are deterministic per message, ZADD on a re-schedule replaces the
// member's score instead of growing the set.
type RedisQueue struct {
	rdb *redis.Client
	key string
}

func NewRedisQueue(rdb *redis.Client, key string) *RedisQueue {
	return &RedisQueue{rdb: rdb, key: key}
}

func (q *RedisQueue) ScheduleAt(ctx context.Context, messageID uuid.UUID, at time.Time) (string, error) {
	jobID := JobID(messageID)
	err := q.rdb.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(at.UTC().UnixMilli()),
		Member: jobID,
	}).Err()
	if err != nil {
		return "", apperr.QueueUnavailable("failed to schedule delivery job", err)
	}

	slog.Info("delivery job scheduled", "job_id", jobID, "fire_at", at.UTC().Format(time.RFC3339))
	return jobID, nil
}

func (q *RedisQueue) EnqueueNow(ctx context.Context, messageID uuid.UUID) (string, error) {
	return q.ScheduleAt(ctx, messageID, time.Now())
}

// ClaimDue removes and returns up to limit due jobs. The ZRem is the claim:
// a job another poller already removed is skipped, so each fire is
// dispatched once per claim even with concurrent pollers.
func (q *RedisQueue) ClaimDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	members, err := q.rdb.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   formatScore(now),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, apperr.QueueUnavailable("failed to read due jobs", err)
	}

	var ids []uuid.UUID
	for _, member := range members {
		removed, err := q.rdb.ZRem(ctx, q.key, member).Result()
		if err != nil {
			return ids, apperr.QueueUnavailable("failed to claim due job", err)
		}
		if removed == 0 {
			continue
		}

		id, ok := MessageID(member)
		if !ok {
			slog.Warn("dropping malformed job id from queue", "job_id", member)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	n, err := q.rdb.ZCard(ctx, q.key).Result()
	if err != nil {
		return 0, apperr.QueueUnavailable("failed to read queue depth", err)
	}
	return n, nil
}

func (q *RedisQueue) Mode() string { return "redis" }

func formatScore(t time.Time) string {
	return strconv.FormatInt(t.UTC().UnixMilli(), 10)
}
