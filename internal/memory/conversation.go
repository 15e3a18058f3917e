package memory

import (
	"context"
	"fmt"
)

const conversationNamespace = "/sre/conversations/%s/%s"

// Message is one chat turn handed to the batch writer. Type is the legacy
// field name some runtimes emit instead of Role.
type Message struct {
	Role    string `json:"role,omitempty"`
	Type    string `json:"type,omitempty"`
	Content any    `json:"content"`
}

// ConversationWriter bulk-ingests ordered chat turns as conversation events.
// Conversation events are never embedded.
type ConversationWriter struct {
	events *Service
}

// NewConversationWriter creates a writer over the given event store.
func NewConversationWriter(events *Service) *ConversationWriter {
	return &ConversationWriter{events: events}
}

// SaveBatch writes one conversation event per message, preserving input
// order, and returns the number written. An empty batch writes nothing. The
// writer is not idempotent: replaying a batch appends duplicate events,
// because the log is append-only.
func (w *ConversationWriter) SaveBatch(ctx context.Context, userID, sessionID string, messages []Message) (int, error) {
	namespace := fmt.Sprintf(conversationNamespace, userID, sessionID)

	written := 0
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = m.Type
		}
		if role == "" {
			role = "unknown"
		}

		_, err := w.events.Append(ctx, AppendRequest{
			Strategy:  StrategyConversation,
			Namespace: namespace,
			ActorID:   userID,
			SessionID: sessionID,
			Role:      role,
			Content:   m.Content,
		})
		if err != nil {
			return written, fmt.Errorf("save turn %d: %w", written, err)
		}
		written++
	}
	return written, nil
}
