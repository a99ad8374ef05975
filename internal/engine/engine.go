// Package engine implements the legacy-message delivery lifecycle: creation,
// scheduling against the job queue, and the guarded send path. Every status
// change goes through the store's compare-and-set transitions, so a queue
// job and a sweep racing on the same message cannot both send it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/afteryou/delivery/internal/apperr"
	"github.com/afteryou/delivery/internal/cache"
	emailpkg "github.com/afteryou/delivery/internal/mail"
	"github.com/afteryou/delivery/internal/model"
	"github.com/afteryou/delivery/internal/queue"
	"github.com/afteryou/delivery/internal/render"
	"github.com/afteryou/delivery/internal/repo"
)

const maxTitleLength = 200

type Engine struct {
	repo     repo.MessageRepository
	mailer   emailpkg.Mailer
	renderer *render.Renderer
	queue    queue.DeliveryQueue

	receipts cache.ReceiptCache
	now      func() time.Time
}

func New(r repo.MessageRepository, m emailpkg.Mailer, rend *render.Renderer, q queue.DeliveryQueue) *Engine {
	return &Engine{
		repo:     r,
		mailer:   m,
		renderer: rend,
		queue:    q,
		now:      time.Now,
	}
}

// WithReceipts records successful sends in the given cache.
func (e *Engine) WithReceipts(c cache.ReceiptCache) *Engine {
	e.receipts = c
	return e
}

// WithClock overrides the time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// CreateMessage validates input and persists a new message in created
// status. The delivery date must be strictly in the future; it is not
// re-validated on later transitions.
func (e *Engine) CreateMessage(ctx context.Context, ownerID, title, content, recipientEmail string, deliveryDate time.Time) (*model.Message, error) {
	if ownerID == "" {
		return nil, apperr.Validation("owner id is required")
	}
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	if len(title) > maxTitleLength {
		return nil, apperr.Validation(fmt.Sprintf("title exceeds %d characters", maxTitleLength))
	}
	if _, err := mail.ParseAddress(recipientEmail); err != nil {
		return nil, apperr.Validation("invalid recipient email address")
	}

	now := e.now()
	if !deliveryDate.After(now) {
		return nil, apperr.Validation("delivery date must be in the future")
	}

	m := &model.Message{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		Title:          title,
		Content:        content,
		RecipientEmail: recipientEmail,
		DeliveryDate:   deliveryDate.UTC(),
		Status:         model.Created,
		CreatedAt:      now.UTC(),
	}

	if err := e.repo.Create(ctx, m); err != nil {
		return nil, apperr.Internal("failed to persist message", err)
	}

	slog.Info("legacy message created", "message_id", m.ID, "delivery_date", m.DeliveryDate)
	return m, nil
}

// Schedule moves a created message to scheduled and books a queue job for
// its delivery date. The queue is asked first: if it is unreachable the
// message stays created and the caller can retry, never a half-applied
// transition.
func (e *Engine) Schedule(ctx context.Context, id uuid.UUID, ownerID string) error {
	m, err := e.repo.Get(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if m.Status != model.Created {
		return apperr.WrongStatus(fmt.Sprintf("message cannot be scheduled from status %s", m.Status))
	}

	jobID, err := e.queue.ScheduleAt(ctx, m.ID, m.DeliveryDate)
	if err != nil {
		slog.Error("failed to schedule delivery job", "message_id", m.ID, "error", err)
		return err
	}

	applied, err := e.repo.Transition(ctx, m.ID, model.Created, model.Scheduled)
	if err != nil {
		return apperr.Internal("failed to transition message to scheduled", err)
	}
	if !applied {
		// A concurrent mutation won; the booked job will no-op when it
		// fires because the status check fails.
		return apperr.WrongStatus("message was modified concurrently")
	}

	if err := e.repo.SetJobID(ctx, m.ID, jobID); err != nil {
		slog.Warn("failed to record job id", "message_id", m.ID, "job_id", jobID, "error", err)
	}

	slog.Info("legacy message scheduled", "message_id", m.ID, "job_id", jobID, "delivery_date", m.DeliveryDate)
	return nil
}

// Deliver is the fired-job entry point. It re-validates every precondition
// because the queue is at-least-once: an already-sent message, a message in
// the wrong status, or a job fired before the delivery date are all safe
// no-ops. Render and transport failures are recorded as a failed status and
// never returned, so the queue does not retry on its own.
func (e *Engine) Deliver(ctx context.Context, id uuid.UUID) error {
	m, err := e.repo.GetAny(ctx, id)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			slog.Warn("delivery job fired for missing message", "message_id", id)
			return nil
		}
		return err
	}

	switch m.Status {
	case model.Sent:
		slog.Info("skipping delivery, message already sent", "message_id", id)
		return nil
	case model.Scheduled:
	default:
		slog.Warn("skipping delivery, message not scheduled", "message_id", id, "status", m.Status)
		return nil
	}

	if now := e.now(); !m.Due(now) {
		// Clock skew or an early-fired job; never send prematurely.
		slog.Info("skipping delivery, not due yet",
			"message_id", id, "delivery_date", m.DeliveryDate, "now", now)
		return nil
	}

	return e.attempt(ctx, m)
}

// SendImmediately bypasses the scheduled wait: test-sends and past-dated
// messages go straight to the send path. The message is first brought to
// scheduled status so the lifecycle graph holds, then delivered without the
// due-time check.
func (e *Engine) SendImmediately(ctx context.Context, id uuid.UUID, ownerID string) error {
	m, err := e.repo.Get(ctx, id, ownerID)
	if err != nil {
		return err
	}

	switch m.Status {
	case model.Sent:
		slog.Info("skipping immediate send, message already sent", "message_id", id)
		return nil
	case model.Pending:
		return apperr.WrongStatus("delivery already in progress")
	case model.Created, model.Failed:
		applied, err := e.repo.Transition(ctx, m.ID, m.Status, model.Scheduled)
		if err != nil {
			return apperr.Internal("failed to transition message to scheduled", err)
		}
		if !applied {
			return apperr.WrongStatus("message was modified concurrently")
		}
		m.Status = model.Scheduled
	case model.Scheduled:
	}

	return e.attempt(ctx, m)
}

// attempt claims the message and runs one delivery try. The claim
// (scheduled -> pending) is the serialization point: of N racing attempts
// exactly one wins and only the winner touches the mail transport.
func (e *Engine) attempt(ctx context.Context, m *model.Message) (err error) {
	claimed, err := e.repo.Transition(ctx, m.ID, model.Scheduled, model.Pending)
	if err != nil {
		return apperr.Internal("failed to claim message for delivery", err)
	}
	if !claimed {
		slog.Info("delivery claim lost, another attempt owns the message", "message_id", m.ID)
		return nil
	}

	// A crash mid-send must not strand the message in pending.
	defer func() {
		if r := recover(); r != nil {
			e.fail(ctx, m.ID, fmt.Sprintf("panic during send: %v", r))
			panic(r)
		}
	}()

	email, renderErr := e.renderer.Render(m)
	if renderErr != nil {
		e.fail(ctx, m.ID, "render failed: "+renderErr.Error())
		return nil
	}

	providerID, sendErr := e.mailer.Send(ctx, email)
	if sendErr != nil {
		e.fail(ctx, m.ID, "transport failed: "+sendErr.Error())
		return nil
	}

	sentAt := e.now()
	applied, err := e.repo.MarkSent(ctx, m.ID, sentAt)
	if err != nil {
		// The mail is out but the store update failed; surface it so the
		// operator sees the drift (the record still reads pending).
		return apperr.Internal("message sent but status update failed", err)
	}
	if !applied {
		slog.Error("sent message was not in pending status", "message_id", m.ID)
	}

	if e.receipts != nil {
		if err := e.receipts.StoreReceipt(ctx, m.ID, providerID, sentAt); err != nil {
			slog.Warn("failed to cache delivery receipt", "message_id", m.ID, "error", err)
		}
	}

	slog.Info("legacy message delivered",
		"message_id", m.ID, "recipient", m.RecipientEmail, "provider_message_id", providerID)
	return nil
}

func (e *Engine) fail(ctx context.Context, id uuid.UUID, reason string) {
	applied, err := e.repo.MarkFailed(ctx, id, model.Pending, reason)
	if err != nil {
		slog.Error("failed to mark message failed", "message_id", id, "reason", reason, "error", err)
		return
	}
	if !applied {
		slog.Error("could not record delivery failure, message left pending", "message_id", id)
		return
	}
	slog.Warn("legacy message delivery failed", "message_id", id, "reason", reason)
}

// Get, List, Delete and Stats are owner-scoped pass-throughs for the API.

func (e *Engine) Get(ctx context.Context, id uuid.UUID, ownerID string) (*model.Message, error) {
	return e.repo.Get(ctx, id, ownerID)
}

func (e *Engine) List(ctx context.Context, ownerID string, status *model.Status) ([]model.Message, error) {
	return e.repo.ListByOwner(ctx, ownerID, status)
}

func (e *Engine) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	return e.repo.Delete(ctx, id, ownerID)
}

func (e *Engine) Stats(ctx context.Context, ownerID string) (model.StatusCounts, error) {
	return e.repo.CountByStatus(ctx, ownerID)
}
