package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/afteryou/delivery/internal/apperr"
	"github.com/afteryou/delivery/internal/model"
)

type PostgresAccountRepo struct {
	db *sql.DB
}

func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

func (r *PostgresAccountRepo) Get(ctx context.Context, id string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, last_check_in, check_in_interval_seconds, grace_period_seconds
		FROM accounts
		WHERE id = $1
	`, id)
	return scanAccount(row)
}

func (r *PostgresAccountRepo) CheckIn(ctx context.Context, id string, at time.Time) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET last_check_in = $2
		WHERE id = $1
		RETURNING id, email, last_check_in, check_in_interval_seconds, grace_period_seconds
	`, id, at.UTC())
	return scanAccount(row)
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var a model.Account
	var lastCheckIn sql.NullTime
	var intervalSecs, graceSecs int64

	err := row.Scan(&a.ID, &a.Email, &lastCheckIn, &intervalSecs, &graceSecs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("account not found")
	}
	if err != nil {
		return nil, err
	}

	if lastCheckIn.Valid {
		a.LastCheckIn = lastCheckIn.Time
	}
	a.CheckInInterval = time.Duration(intervalSecs) * time.Second
	a.GracePeriod = time.Duration(graceSecs) * time.Second
	return &a, nil
}
