package memory

import "context"

// Filter narrows a retrieval to a strategy scope. Empty fields are ignored.
// A non-empty SessionID matches rows with that session or no session at all,
// so session-scoped lookups still see globally scoped events.
type Filter struct {
	Strategy        Strategy
	ActorID         string
	SessionID       string
	NamespacePrefix string
}

// Store is the persistence contract behind the event service. Both backends
// expose the same append-only events table; each call is one self-contained
// transaction and no locks are held across calls.
type Store interface {
	// InitSchema creates the events table and supporting indexes if missing.
	InitSchema(ctx context.Context) error

	// InsertEvent writes exactly one row. The event carries its own id and
	// created_at. Failures surface as *WriteError.
	InsertEvent(ctx context.Context, ev *Event) error

	// SearchSemantic ranks embedded rows in scope by descending cosine
	// similarity to queryVec. Rows without an embedding are never returned.
	SearchSemantic(ctx context.Context, f Filter, queryVec []float32, limit int) ([]Item, error)

	// SearchKeywordOrRecent returns rows in scope newest first. A non-empty
	// keyword restricts results to rows whose serialized content contains it
	// case-insensitively; ordering stays by recency either way.
	SearchKeywordOrRecent(ctx context.Context, f Filter, keyword string, limit int) ([]Item, error)

	// RecentTurns returns up to k conversation rows for the actor and
	// session, newest first.
	RecentTurns(ctx context.Context, actorID, sessionID string, k int) ([]Item, error)

	// Close releases any resources held by the store.
	Close() error
}
