package memory

import (
	"context"
	"fmt"
	"strings"

	adkmemory "google.golang.org/adk/memory"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

// SessionService adapts the event store to adk's memory.Service. Finished
// sessions are ingested as conversation events through the batch writer, and
// adk memory search is answered from semantic retrieval over the two
// embedded strategies.
type SessionService struct {
	events *Service
	turns  *ConversationWriter
}

// NewSessionService creates the adapter over the given event store.
func NewSessionService(events *Service) *SessionService {
	return &SessionService{events: events, turns: NewConversationWriter(events)}
}

// AddSession implements memory.Service. Each text-bearing session event
// becomes one conversation turn for the session's user; sessions with no
// text produce no writes.
func (s *SessionService) AddSession(ctx context.Context, sess session.Session) error {
	var messages []Message
	for event := range sess.Events().All() {
		content := event.Content
		if content == nil {
			content = event.LLMResponse.Content
		}
		text := joinTextParts(content)
		if text == "" {
			continue
		}

		role := "assistant"
		if event.Author == "user" {
			role = "user"
		}
		messages = append(messages, Message{Role: role, Content: text})
	}
	if len(messages) == 0 {
		return nil
	}

	if _, err := s.turns.SaveBatch(ctx, sess.UserID(), sess.ID(), messages); err != nil {
		return fmt.Errorf("ingest session: %w", err)
	}
	return nil
}

// Search implements memory.Service. The query runs against both embedded
// strategies and results are returned as plain-text memory entries.
func (s *SessionService) Search(ctx context.Context, req *adkmemory.SearchRequest) (*adkmemory.SearchResponse, error) {
	entries := []adkmemory.Entry{}
	for _, strategy := range []Strategy{StrategyPreference, StrategyInfrastructure} {
		items, err := s.events.RetrieveSemantic(ctx, Query{
			Strategy: strategy,
			Text:     req.Query,
			Limit:    5,
		})
		if err != nil {
			return nil, fmt.Errorf("search %s memory: %w", strategy, err)
		}

		for _, item := range items {
			text := deriveEmbedText(item.Content)
			if strings.TrimSpace(text) == "" {
				continue
			}
			contentParts := genai.Text(text)
			if len(contentParts) == 0 {
				continue
			}
			entries = append(entries, adkmemory.Entry{
				Content:   contentParts[0],
				Author:    "system",
				Timestamp: item.CreatedAt,
			})
		}
	}
	return &adkmemory.SearchResponse{Memories: entries}, nil
}

func joinTextParts(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var texts []string
	for _, part := range content.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, " ")
}

var _ adkmemory.Service = (*SessionService)(nil)
