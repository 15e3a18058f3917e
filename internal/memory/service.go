package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultRetrieveLimit = 20
	defaultTurnLimit     = 10
)

// Embedder turns free text into a fixed-dimension vector. Implementations
// must be deterministic for a fixed model so similarity ranking is
// reproducible.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Service is the event store. It owns write-time policy (content coercion,
// embedding, TTL) and search-mode dispatch; persistence is delegated to a
// Store backend. Embedding runs before the write so no transaction is held
// open while the model works.
type Service struct {
	store    Store
	embedder Embedder
}

// NewService creates an event store over the given backend. The embedder is
// required for the embedding-capable strategies (preference and
// infrastructure); a service built without one can still record and retrieve
// investigation and conversation events.
func NewService(store Store, embedder Embedder) *Service {
	return &Service{store: store, embedder: embedder}
}

// AppendRequest describes one event to record.
type AppendRequest struct {
	Strategy  Strategy
	Namespace string
	ActorID   string
	SessionID string // optional
	Role      string // optional; conversation turns only
	Content   any
	EmbedText string // optional override for the text that gets embedded
	Metadata  map[string]any
}

// Append records exactly one event and returns its id. For
// embedding-capable strategies with non-blank derived text the content is
// embedded; otherwise the embedding column stays NULL. The TTL is computed
// from the strategy's retention and stored alongside, unenforced.
func (s *Service) Append(ctx context.Context, req AppendRequest) (string, error) {
	if !req.Strategy.valid() {
		return "", fmt.Errorf("memory: unknown strategy %q", req.Strategy)
	}
	if req.Namespace == "" {
		return "", errors.New("memory: namespace is required")
	}
	if req.ActorID == "" {
		return "", errors.New("memory: actor_id is required")
	}

	content := normalizeContent(req.Content)
	embedText := req.EmbedText
	if embedText == "" {
		embedText = deriveEmbedText(content)
	}

	var embedding []float32
	if req.Strategy.embeddingCapable() && strings.TrimSpace(embedText) != "" {
		if s.embedder == nil {
			return "", fmt.Errorf("memory: no embedder configured for strategy %q", req.Strategy)
		}
		vec, err := s.embedder.Embed(ctx, embedText)
		if err != nil {
			return "", fmt.Errorf("embed content: %w", err)
		}
		embedding = vec
	}

	now := time.Now().UTC()
	ev := &Event{
		ID:           uuid.NewString(),
		Strategy:     req.Strategy,
		Namespace:    req.Namespace,
		ActorID:      req.ActorID,
		SessionID:    req.SessionID,
		Role:         req.Role,
		Content:      content,
		Embedding:    embedding,
		TTLExpiresAt: req.Strategy.ttl(now),
		Metadata:     req.Metadata,
		CreatedAt:    now,
	}
	if err := s.store.InsertEvent(ctx, ev); err != nil {
		return "", err
	}
	return ev.ID, nil
}

// Query scopes a retrieval. Empty optional fields are ignored; Text is the
// free-text query, where "*" (or blank) means "no content filter" for
// keyword/recency retrieval.
type Query struct {
	Strategy        Strategy
	ActorID         string
	SessionID       string
	NamespacePrefix string
	Text            string
	Limit           int
}

// RetrieveSemantic ranks embedded events in scope by descending similarity
// to the query text. A blank query embeds a single space so the vector
// comparison stays well-defined. Events without an embedding are never
// returned; an empty result is not an error.
func (s *Service) RetrieveSemantic(ctx context.Context, q Query) ([]Item, error) {
	if !q.Strategy.valid() || q.Strategy.Mode() != SearchSemantic {
		return nil, fmt.Errorf("memory: strategy %q does not support semantic search", q.Strategy)
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("memory: no embedder configured for strategy %q", q.Strategy)
	}

	text := q.Text
	if strings.TrimSpace(text) == "" {
		text = " "
	}
	queryVec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	f := Filter{
		Strategy:        q.Strategy,
		ActorID:         q.ActorID,
		SessionID:       q.SessionID,
		NamespacePrefix: q.NamespacePrefix,
	}
	return s.store.SearchSemantic(ctx, f, queryVec, orDefault(q.Limit, defaultRetrieveLimit))
}

// RetrieveKeywordOrRecent returns events in scope newest first. A query of
// "*" or blank applies no content filter; anything else restricts results to
// events whose serialized content contains the query case-insensitively.
// Recency always wins: there is no relevance ranking in this mode and item
// scores are nil.
func (s *Service) RetrieveKeywordOrRecent(ctx context.Context, q Query) ([]Item, error) {
	if !q.Strategy.valid() || q.Strategy.Mode() != SearchKeywordRecent {
		return nil, fmt.Errorf("memory: strategy %q uses semantic search, not keyword", q.Strategy)
	}

	keyword := q.Text
	if keyword == "*" {
		keyword = ""
	}

	f := Filter{
		Strategy:        q.Strategy,
		ActorID:         q.ActorID,
		SessionID:       q.SessionID,
		NamespacePrefix: q.NamespacePrefix,
	}
	return s.store.SearchKeywordOrRecent(ctx, f, keyword, orDefault(q.Limit, defaultRetrieveLimit))
}

// RecentTurns returns up to k conversation events for the user and session,
// newest first. Callers wanting chronological order reverse the slice.
func (s *Service) RecentTurns(ctx context.Context, userID, sessionID string, k int) ([]Item, error) {
	return s.store.RecentTurns(ctx, userID, sessionID, orDefault(k, defaultTurnLimit))
}

func orDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
