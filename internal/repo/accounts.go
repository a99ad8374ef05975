package repo

import (
	"context"
	"time"

	"github.com/afteryou/delivery/internal/model"
)

type AccountRepository interface {
	Get(ctx context.Context, id string) (*model.Account, error)
	// CheckIn records a check-in and returns the updated account.
	CheckIn(ctx context.Context, id string, at time.Time) (*model.Account, error)
}
