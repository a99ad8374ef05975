package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/afteryou/delivery/internal/apperr"
	"github.com/afteryou/delivery/internal/model"
)

// MemoryMessageRepo is an in-memory MessageRepository with the same
// compare-and-set semantics as the Postgres implementation. It backs the
// engine and sweep tests and small single-node deployments.
type MemoryMessageRepo struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*model.Message
}

var _ MessageRepository = (*MemoryMessageRepo)(nil)

func NewMemoryMessageRepo() *MemoryMessageRepo {
	return &MemoryMessageRepo{messages: make(map[uuid.UUID]*model.Message)}
}

func (r *MemoryMessageRepo) Create(ctx context.Context, m *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.messages[m.ID]; ok {
		return fmt.Errorf("duplicate message id %s", m.ID)
	}
	cp := *m
	r.messages[m.ID] = &cp
	return nil
}

func (r *MemoryMessageRepo) Get(ctx context.Context, id uuid.UUID, ownerID string) (*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[id]
	if !ok || m.OwnerID != ownerID {
		return nil, apperr.NotFound("message not found")
	}
	cp := *m
	return &cp, nil
}

func (r *MemoryMessageRepo) GetAny(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[id]
	if !ok {
		return nil, apperr.NotFound("message not found")
	}
	cp := *m
	return &cp, nil
}

func (r *MemoryMessageRepo) ListByOwner(ctx context.Context, ownerID string, status *model.Status) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Message
	for _, m := range r.messages {
		if m.OwnerID != ownerID {
			continue
		}
		if status != nil && m.Status != *status {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryMessageRepo) CountByStatus(ctx context.Context, ownerID string) (model.StatusCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var counts model.StatusCounts
	for _, m := range r.messages {
		if m.OwnerID != ownerID {
			continue
		}
		counts.Total++
		switch m.Status {
		case model.Created:
			counts.Created++
		case model.Scheduled:
			counts.Scheduled++
		case model.Pending:
			counts.Pending++
		case model.Sent:
			counts.Sent++
		case model.Failed:
			counts.Failed++
		}
	}
	return counts, nil
}

func (r *MemoryMessageRepo) Transition(ctx context.Context, id uuid.UUID, from, to model.Status) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, apperr.WrongStatus(fmt.Sprintf("transition %s -> %s is not allowed", from, to))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[id]
	if !ok || m.Status != from {
		return false, nil
	}
	m.Status = to
	return true, nil
}

func (r *MemoryMessageRepo) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[id]
	if !ok || m.Status != model.Pending {
		return false, nil
	}
	t := sentAt.UTC()
	m.Status = model.Sent
	m.SentAt = &t
	m.LastError = nil
	m.JobID = nil
	return true, nil
}

func (r *MemoryMessageRepo) MarkFailed(ctx context.Context, id uuid.UUID, from model.Status, reason string) (bool, error) {
	if !from.CanTransitionTo(model.Failed) {
		return false, apperr.WrongStatus(fmt.Sprintf("transition %s -> %s is not allowed", from, model.Failed))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[id]
	if !ok || m.Status != from {
		return false, nil
	}
	m.Status = model.Failed
	m.LastError = &reason
	m.JobID = nil
	return true, nil
}

func (r *MemoryMessageRepo) SetJobID(ctx context.Context, id uuid.UUID, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[id]
	if !ok {
		return apperr.NotFound("message not found")
	}
	m.JobID = &jobID
	return nil
}

func (r *MemoryMessageRepo) ClearJobID(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[id]
	if !ok {
		return apperr.NotFound("message not found")
	}
	m.JobID = nil
	return nil
}

func (r *MemoryMessageRepo) DueScheduled(ctx context.Context, now time.Time) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Message
	for _, m := range r.messages {
		if m.Status == model.Scheduled && m.Due(now) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DeliveryDate.Before(out[j].DeliveryDate)
	})
	return out, nil
}

func (r *MemoryMessageRepo) FailedSince(ctx context.Context, oldest time.Time) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Message
	for _, m := range r.messages {
		if m.Status == model.Failed && !m.DeliveryDate.Before(oldest) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DeliveryDate.Before(out[j].DeliveryDate)
	})
	return out, nil
}

func (r *MemoryMessageRepo) CountSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, m := range r.messages {
		if m.Status == model.Sent && m.SentAt != nil && m.SentAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryMessageRepo) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[id]
	if !ok || m.OwnerID != ownerID {
		return apperr.NotFound("message not found")
	}
	if !m.Status.Deletable() {
		return apperr.WrongStatus("message can only be deleted while created or failed")
	}
	delete(r.messages, id)
	return nil
}
