package ports

import (
	"context"
	"time"

	"DealScanner/internal/domain"
)

// SearchProvider returns a bounded list of listings for a query.
type SearchProvider interface {
	Search(ctx context.Context, token string, query domain.SearchQuery) ([]domain.Listing, error)
}

// TokenProvider exchanges client credentials for a bearer token.
type TokenProvider interface {
	Token(ctx context.Context) (token string, expiresIn time.Duration, err error)
}

// Notifier delivers a text message to a fixed destination.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// SeenStore persists the set of listing IDs that were already notified.
type SeenStore interface {
	Load(ctx context.Context) (map[string]struct{}, error)
	Save(ctx context.Context, seen map[string]struct{}) error
}

// SnapshotWriter appends one immutable audit record per scan cycle.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, snapshot domain.Snapshot) (string, error)
}

// Scheduler controls when scan cycles execute.
type Scheduler interface {
	Run(ctx context.Context, job func(context.Context)) error
}
