package service

import (
	"context"
	"time"

	"github.com/hanapgigs/escrow-engine/internal/repository"
)

// QueryStore defines the minimal data access contract required by services.
type QueryStore interface {
	Queries() repository.Querier
	RunInTx(ctx context.Context, fn func(q repository.Querier) error) error
}

var _ QueryStore = (*repository.Store)(nil)

// Clock is injected so contract date computation is deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// NewSystemClock returns the production clock.
func NewSystemClock() Clock { return systemClock{} }
