// Package sweep reconciles the message store against expected delivery
// timing, independently of the job queue. It recovers messages whose jobs
// were lost to a crash and retries recent failures inside a bounded window.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/afteryou/delivery/internal/model"
	"github.com/afteryou/delivery/internal/repo"
)

// Deliverer is implemented by the engine; the sweep never talks to the mail
// transport directly.
type Deliverer interface {
	Deliver(ctx context.Context, messageID uuid.UUID) error
}

type Sweeper struct {
	repo        repo.MessageRepository
	deliverer   Deliverer
	retryWindow time.Duration
	cleanupAge  time.Duration
	now         func() time.Time
}

func New(r repo.MessageRepository, d Deliverer, retryWindow, cleanupAge time.Duration) *Sweeper {
	return &Sweeper{
		repo:        r,
		deliverer:   d,
		retryWindow: retryWindow,
		cleanupAge:  cleanupAge,
		now:         time.Now,
	}
}

// WithClock overrides the time source.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

type DueResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

type RetryResult struct {
	Retried    int `json:"retried"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// SweepDue delivers every scheduled message whose delivery date has passed.
// This covers jobs lost to a scheduler crash or never enqueued; racing the
// queue worker is safe because Deliver re-checks status under a
// compare-and-set claim.
func (s *Sweeper) SweepDue(ctx context.Context) (DueResult, error) {
	now := s.now()

	due, err := s.repo.DueScheduled(ctx, now)
	if err != nil {
		return DueResult{}, err
	}

	var res DueResult
	for _, m := range due {
		res.Processed++
		if s.attempt(ctx, m.ID) {
			res.Sent++
		} else {
			res.Failed++
		}
	}

	if res.Processed > 0 {
		slog.Info("due sweep completed",
			"processed", res.Processed, "sent", res.Sent, "failed", res.Failed)
	}
	return res, nil
}

// SweepRetries re-schedules failed messages still inside the retry window
// (delivery_date + window) and re-attempts each once. Messages past the
// window stay failed until someone resets them by hand.
func (s *Sweeper) SweepRetries(ctx context.Context) (RetryResult, error) {
	now := s.now()

	failed, err := s.repo.FailedSince(ctx, now.Add(-s.retryWindow))
	if err != nil {
		return RetryResult{}, err
	}

	var res RetryResult
	for _, m := range failed {
		applied, err := s.repo.Transition(ctx, m.ID, model.Failed, model.Scheduled)
		if err != nil {
			slog.Error("failed to re-schedule message for retry", "message_id", m.ID, "error", err)
			continue
		}
		if !applied {
			continue
		}

		res.Retried++
		if s.attempt(ctx, m.ID) {
			res.Successful++
		} else {
			res.Failed++
		}
	}

	if res.Retried > 0 {
		slog.Info("retry sweep completed",
			"retried", res.Retried, "successful", res.Successful, "failed", res.Failed)
	}
	return res, nil
}

// SweepCleanup counts sent messages older than the retention cutoff. It
// deliberately stops at counting; archival policy is an operator decision.
func (s *Sweeper) SweepCleanup(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.cleanupAge)

	n, err := s.repo.CountSentBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("cleanup sweep found old sent messages", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// Run executes all sweeps; it is the scheduler tick body.
func (s *Sweeper) Run(ctx context.Context) {
	if _, err := s.SweepDue(ctx); err != nil {
		slog.Error("due sweep failed", "error", err)
	}
	if _, err := s.SweepRetries(ctx); err != nil {
		slog.Error("retry sweep failed", "error", err)
	}
	if _, err := s.SweepCleanup(ctx); err != nil {
		slog.Error("cleanup sweep failed", "error", err)
	}
}

// attempt runs one delivery and reports whether the message ended up sent.
func (s *Sweeper) attempt(ctx context.Context, id uuid.UUID) bool {
	if err := s.deliverer.Deliver(ctx, id); err != nil {
		slog.Error("sweep delivery attempt failed", "message_id", id, "error", err)
		return false
	}

	m, err := s.repo.GetAny(ctx, id)
	if err != nil {
		slog.Error("failed to read message after sweep attempt", "message_id", id, "error", err)
		return false
	}
	return m.Status == model.Sent
}
