package model

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	Created   Status = "created"
	Scheduled Status = "scheduled"
	Pending   Status = "pending"
	Sent      Status = "sent"
	Failed    Status = "failed"
)

// transitions is the closed lifecycle graph. A delivery attempt claims a
// scheduled message by moving it to pending before touching the mail
// transport, so two racing attempts cannot both send. failed -> scheduled
// is the only back-edge (retry); sent is terminal.
var transitions = map[Status][]Status{
	Created:   {Scheduled},
	Scheduled: {Pending, Failed},
	Pending:   {Sent, Failed},
	Failed:    {Scheduled},
	Sent:      nil,
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// Deletable statuses are the ones an owner may remove a message from.
func (s Status) Deletable() bool {
	return s == Created || s == Failed
}

type Message struct {
	ID             uuid.UUID  `json:"id"`
	OwnerID        string     `json:"ownerId"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	RecipientEmail string     `json:"recipientEmail"`
	DeliveryDate   time.Time  `json:"deliveryDate"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	SentAt         *time.Time `json:"sentAt,omitempty"`
	JobID          *string    `json:"jobId,omitempty"`
	LastError      *string    `json:"lastError,omitempty"`
}

// Due reports whether the delivery date has arrived.
func (m *Message) Due(now time.Time) bool {
	return !m.DeliveryDate.After(now)
}

// StatusCounts is the dashboard projection: per-status message counts for
// one owner.
type StatusCounts struct {
	Total     int64 `json:"total"`
	Created   int64 `json:"created"`
	Scheduled int64 `json:"scheduled"`
	Pending   int64 `json:"pending"`
	Sent      int64 `json:"sent"`
	Failed    int64 `json:"failed"`
}
