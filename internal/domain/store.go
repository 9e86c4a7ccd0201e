package domain

import "context"

// ThoughtStore persists an append-only journal of decisions.
type ThoughtStore interface {
	Insert(ctx context.Context, t ThoughtEntry) error
	// ListRecent returns up to limit entries, most recent first.
	ListRecent(ctx context.Context, limit int) ([]ThoughtEntry, error)
}
