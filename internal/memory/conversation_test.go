package memory

import (
	"context"
	"testing"
)

func TestSaveBatch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	writer := NewConversationWriter(svc)

	written, err := writer.SaveBatch(ctx, "alice", "s1", []Message{
		{Role: "user", Content: "pods are crashing"},
		{Role: "assistant", Content: map[string]any{"text": "checking the deployment"}},
		{Type: "tool", Content: "kubectl get pods"},
	})
	if err != nil {
		t.Fatalf("save batch: %v", err)
	}
	if written != 3 {
		t.Fatalf("expected 3 written, got %d", written)
	}

	items, err := svc.RecentTurns(ctx, "alice", "s1", 10)
	if err != nil {
		t.Fatalf("recent turns: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(items))
	}

	for _, item := range items {
		if item.Namespace != "/sre/conversations/alice/s1" {
			t.Errorf("unexpected namespace %q", item.Namespace)
		}
	}

	// Newest first, so the last message of the batch comes back first.
	if items[0].Role != "tool" {
		t.Errorf("expected role fallback to Type, got %q", items[0].Role)
	}
	if items[2].Role != "user" {
		t.Errorf("expected first turn last, got role %q", items[2].Role)
	}
	if items[2].Content != "pods are crashing" {
		t.Errorf("unexpected content %v", items[2].Content)
	}
}

func TestSaveBatch_RoleFallbacks(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	writer := NewConversationWriter(svc)

	if _, err := writer.SaveBatch(ctx, "alice", "s1", []Message{
		{Content: 42},
	}); err != nil {
		t.Fatalf("save batch: %v", err)
	}

	items, err := svc.RecentTurns(ctx, "alice", "s1", 1)
	if err != nil {
		t.Fatalf("recent turns: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(items))
	}
	if items[0].Role != "unknown" {
		t.Errorf("expected role 'unknown', got %q", items[0].Role)
	}

	content, ok := items[0].Content.(map[string]any)
	if !ok {
		t.Fatalf("scalar content should be wrapped, got %T", items[0].Content)
	}
	if content["text"] != "42" {
		t.Errorf("unexpected wrapped content %v", content)
	}
}

func TestSaveBatch_Empty(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	writer := NewConversationWriter(svc)

	written, err := writer.SaveBatch(ctx, "alice", "s1", nil)
	if err != nil {
		t.Fatalf("save batch: %v", err)
	}
	if written != 0 {
		t.Errorf("expected 0 written, got %d", written)
	}
}
