package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/afteryou/delivery/internal/apperr"
	"github.com/afteryou/delivery/internal/model"
)

type PostgresMessageRepo struct {
	db *sql.DB
}

var _ MessageRepository = (*PostgresMessageRepo)(nil)

func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

const messageColumns = `id, owner_id, title, content, recipient_email, delivery_date,
       status, created_at, sent_at, job_id, last_error`

func (r *PostgresMessageRepo) Create(ctx context.Context, m *model.Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, owner_id, title, content, recipient_email,
		                      delivery_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, m.OwnerID, m.Title, m.Content, m.RecipientEmail,
		m.DeliveryDate.UTC(), string(m.Status), m.CreatedAt.UTC())
	return err
}

func (r *PostgresMessageRepo) Get(ctx context.Context, id uuid.UUID, ownerID string) (*model.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	return scanMessage(row)
}

func (r *PostgresMessageRepo) GetAny(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE id = $1
	`, id)
	return scanMessage(row)
}

func (r *PostgresMessageRepo) ListByOwner(ctx context.Context, ownerID string, status *model.Status) ([]model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	args := []any{ownerID}
	if status != nil {
		query = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE owner_id = $1 AND status = $2
			ORDER BY created_at DESC
		`
		args = append(args, string(*status))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *PostgresMessageRepo) CountByStatus(ctx context.Context, ownerID string) (model.StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, count(*)
		FROM messages
		WHERE owner_id = $1
		GROUP BY status
	`, ownerID)
	if err != nil {
		return model.StatusCounts{}, err
	}
	defer rows.Close()

	var counts model.StatusCounts
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return model.StatusCounts{}, err
		}
		counts.Total += n
		switch model.Status(status) {
		case model.Created:
			counts.Created = n
		case model.Scheduled:
			counts.Scheduled = n
		case model.Pending:
			counts.Pending = n
		case model.Sent:
			counts.Sent = n
		case model.Failed:
			counts.Failed = n
		}
	}
	return counts, rows.Err()
}

// Transition applies the from->to edge as a compare-and-set; it returns
// false when the persisted status no longer matches from, meaning another
// worker already moved the message.
func (r *PostgresMessageRepo) Transition(ctx context.Context, id uuid.UUID, from, to model.Status) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, apperr.WrongStatus(fmt.Sprintf("transition %s -> %s is not allowed", from, to))
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresMessageRepo) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = $2,
		    sent_at = $3,
		    last_error = NULL,
		    job_id = NULL,
		    updated_at = now()
		WHERE id = $1 AND status = $4
	`, id, string(model.Sent), sentAt.UTC(), string(model.Pending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresMessageRepo) MarkFailed(ctx context.Context, id uuid.UUID, from model.Status, reason string) (bool, error) {
	if !from.CanTransitionTo(model.Failed) {
		return false, apperr.WrongStatus(fmt.Sprintf("transition %s -> %s is not allowed", from, model.Failed))
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = $3,
		    last_error = $4,
		    job_id = NULL,
		    updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, string(from), string(model.Failed), reason)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresMessageRepo) SetJobID(ctx context.Context, id uuid.UUID, jobID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET job_id = $2, updated_at = now() WHERE id = $1
	`, id, jobID)
	return err
}

func (r *PostgresMessageRepo) ClearJobID(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET job_id = NULL, updated_at = now() WHERE id = $1
	`, id)
	return err
}

func (r *PostgresMessageRepo) DueScheduled(ctx context.Context, now time.Time) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE status = $1 AND delivery_date <= $2
		ORDER BY delivery_date ASC
	`, string(model.Scheduled), now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *PostgresMessageRepo) FailedSince(ctx context.Context, oldest time.Time) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE status = $1 AND delivery_date >= $2
		ORDER BY delivery_date ASC
	`, string(model.Failed), oldest.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *PostgresMessageRepo) CountSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM messages
		WHERE status = $1 AND sent_at < $2
	`, string(model.Sent), cutoff.UTC()).Scan(&n)
	return n, err
}

func (r *PostgresMessageRepo) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE id = $1 AND owner_id = $2
		  AND status IN ($3, $4)
	`, id, ownerID, string(model.Created), string(model.Failed))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the record does not exist for this owner, or it is in a
		// non-deletable status. Disambiguate for the caller.
		if _, err := r.Get(ctx, id, ownerID); err != nil {
			return err
		}
		return apperr.WrongStatus("message can only be deleted while created or failed")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*model.Message, error) {
	var m model.Message
	var status string
	var sentAt sql.NullTime
	var jobID, lastErr sql.NullString

	err := row.Scan(
		&m.ID,
		&m.OwnerID,
		&m.Title,
		&m.Content,
		&m.RecipientEmail,
		&m.DeliveryDate,
		&status,
		&m.CreatedAt,
		&sentAt,
		&jobID,
		&lastErr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("message not found")
	}
	if err != nil {
		return nil, err
	}

	m.Status = model.Status(status)
	if sentAt.Valid {
		t := sentAt.Time
		m.SentAt = &t
	}
	if jobID.Valid {
		s := jobID.String
		m.JobID = &s
	}
	if lastErr.Valid {
		s := lastErr.String
		m.LastError = &s
	}
	return &m, nil
}

func scanMessages(rows *sql.Rows) ([]model.Message, error) {
	var out []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}
