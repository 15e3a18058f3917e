// Package memory implements the SRE agent's persistent memory: an
// append-only event log in Postgres or SQLite with per-strategy retention
// and retrieval (vector similarity for embedded strategies, keyword/recency
// for the rest).
package memory

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// Strategy is the category of an event. It determines retention, whether
// content is embedded, and which search mode retrieval uses.
type Strategy string

const (
	StrategyPreference     Strategy = "preference"
	StrategyInfrastructure Strategy = "infrastructure"
	StrategyInvestigation  Strategy = "investigation"
	StrategyConversation   Strategy = "conversation"
)

// SearchMode selects how a strategy's events are retrieved.
type SearchMode int

const (
	// SearchSemantic ranks by cosine similarity of embeddings.
	SearchSemantic SearchMode = iota
	// SearchKeywordRecent filters by substring match and orders by recency.
	SearchKeywordRecent
)

// descriptor holds everything that varies per strategy. All read and write
// paths consult this table instead of comparing strategy strings inline.
type descriptor struct {
	embeddingCapable bool
	retentionDays    int // 0 means no TTL
	mode             SearchMode
}

var strategies = map[Strategy]descriptor{
	StrategyPreference:     {embeddingCapable: true, retentionDays: 90, mode: SearchSemantic},
	StrategyInfrastructure: {embeddingCapable: true, retentionDays: 30, mode: SearchSemantic},
	StrategyInvestigation:  {retentionDays: 60, mode: SearchKeywordRecent},
	StrategyConversation:   {retentionDays: 14, mode: SearchKeywordRecent},
}

func (s Strategy) valid() bool {
	_, ok := strategies[s]
	return ok
}

func (s Strategy) embeddingCapable() bool {
	return strategies[s].embeddingCapable
}

// Mode returns the search mode retrieval uses for this strategy.
func (s Strategy) Mode() SearchMode {
	return strategies[s].mode
}

// ttl computes the expiry timestamp for an event created at now, or nil for
// strategies without a retention horizon. The expiry is stored but nothing
// in this package reads or enforces it; a reclamation job can be added later
// without a backfill.
func (s Strategy) ttl(now time.Time) *time.Time {
	days := strategies[s].retentionDays
	if days == 0 {
		return nil
	}
	t := now.Add(time.Duration(days) * 24 * time.Hour)
	return &t
}

// Event is one immutable row of the memory log. Events are created by a
// single write and never updated or deleted by this package.
type Event struct {
	ID           string
	Strategy     Strategy
	Namespace    string
	ActorID      string
	SessionID    string // empty means NULL
	Role         string // empty means NULL; only meaningful for conversation
	Content      any
	Embedding    []float32 // nil unless the strategy is embedding-capable
	TTLExpiresAt *time.Time
	Metadata     map[string]any
	CreatedAt    time.Time
}

// Item is one retrieval result. Score is the similarity for semantic
// retrieval and nil for keyword/recency retrieval.
type Item struct {
	ID        string    `json:"id"`
	Namespace string    `json:"namespace"`
	ActorID   string    `json:"actor_id"`
	SessionID string    `json:"session_id,omitempty"`
	Role      string    `json:"role,omitempty"`
	Score     *float64  `json:"score"`
	Content   any       `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// WriteError reports a failed insert. The store never retries; retry policy
// belongs to the caller.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return "memory: write failed: " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// normalizeContent keeps strings, maps and slices as they are and wraps any
// other value as {"text": "<value>"} so content always round-trips as JSON.
func normalizeContent(v any) any {
	switch v.(type) {
	case nil:
		return map[string]any{}
	case string:
		return v
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return v
	}
	return map[string]any{"text": fmt.Sprint(v)}
}

// embedTextKeys are tried in order when picking which part of a mapping to
// embed.
var embedTextKeys = []string{"summary", "text", "value", "details"}

// deriveEmbedText selects the text to embed when the caller did not supply
// one: string content embeds as-is, mappings prefer a small set of common
// keys, and everything else embeds its JSON serialization.
func deriveEmbedText(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case map[string]any:
		for _, k := range embedTextKeys {
			if s, ok := c[k].(string); ok {
				return s
			}
		}
	}
	b, err := json.Marshal(content)
	if err != nil {
		return fmt.Sprint(content)
	}
	return string(b)
}
