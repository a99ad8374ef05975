// Package queue decouples when a delivery is attempted from whether it
// succeeds. Jobs carry only a message id; the engine re-validates due-ness
// and status when a job fires, so at-least-once dispatch is safe.
package queue

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeliveryQueue schedules delivery attempts. Both operations fail fast when
// the backend is unreachable; callers leave the message in a retryable
// state rather than a limbo status.
type DeliveryQueue interface {
	ScheduleAt(ctx context.Context, messageID uuid.UUID, at time.Time) (jobID string, err error)
	EnqueueNow(ctx context.Context, messageID uuid.UUID) (jobID string, err error)
}

// Deliverer is the callback a fired job invokes. Delivery failures are
// recorded on the message, never returned here; an error means the attempt
// itself could not run.
type Deliverer interface {
	Deliver(ctx context.Context, messageID uuid.UUID) error
}

const jobPrefix = "deliver:"

// JobID is deterministic per message so re-scheduling replaces the existing
// entry instead of duplicating it.
func JobID(messageID uuid.UUID) string {
	return jobPrefix + messageID.String()
}

// MessageID recovers the message id from a job id.
func MessageID(jobID string) (uuid.UUID, bool) {
	raw, ok := strings.CutPrefix(jobID, jobPrefix)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
