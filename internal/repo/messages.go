package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/afteryou/delivery/internal/model"
)

// MessageRepository is the one shared mutable resource of the delivery core.
// Every status write is a compare-and-set against the current persisted
// status; the boolean result reports whether this caller won the transition.
type MessageRepository interface {
	Create(ctx context.Context, m *model.Message) error

	// Get is owner-scoped: a wrong owner is indistinguishable from a
	// missing record. GetAny is for queue workers, which only hold an id.
	Get(ctx context.Context, id uuid.UUID, ownerID string) (*model.Message, error)
	GetAny(ctx context.Context, id uuid.UUID) (*model.Message, error)

	ListByOwner(ctx context.Context, ownerID string, status *model.Status) ([]model.Message, error)
	CountByStatus(ctx context.Context, ownerID string) (model.StatusCounts, error)

	Transition(ctx context.Context, id uuid.UUID, from, to model.Status) (bool, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, from model.Status, reason string) (bool, error)

	SetJobID(ctx context.Context, id uuid.UUID, jobID string) error
	ClearJobID(ctx context.Context, id uuid.UUID) error

	// DueScheduled returns scheduled messages whose delivery date has
	// passed; FailedSince returns failed messages still inside the retry
	// window (delivery_date >= oldest).
	DueScheduled(ctx context.Context, now time.Time) ([]model.Message, error)
	FailedSince(ctx context.Context, oldest time.Time) ([]model.Message, error)

	CountSentBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Delete(ctx context.Context, id uuid.UUID, ownerID string) error
}
