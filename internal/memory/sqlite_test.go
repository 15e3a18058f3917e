package memory

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestSearchKeywordOrRecent_WildcardRecency(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	summaries := []string{"first incident", "second incident", "third incident"}
	for _, s := range summaries {
		if _, err := svc.Append(ctx, AppendRequest{
			Strategy:  StrategyInvestigation,
			Namespace: "/sre/investigations/alice/s1",
			ActorID:   "alice",
			SessionID: "s1",
			Content:   map[string]any{"summary": s},
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	items, err := svc.RetrieveKeywordOrRecent(ctx, Query{
		Strategy: StrategyInvestigation,
		ActorID:  "alice",
		Text:     "*",
		Limit:    2,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected limit to cap results at 2, got %d", len(items))
	}

	got0 := items[0].Content.(map[string]any)["summary"]
	got1 := items[1].Content.(map[string]any)["summary"]
	if got0 != "third incident" || got1 != "second incident" {
		t.Errorf("expected newest first, got %v then %v", got0, got1)
	}
	if items[0].Score != nil {
		t.Error("keyword results must not carry a score")
	}
}

func TestSearchKeywordOrRecent_CaseInsensitive(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	appendInv := func(summary string) {
		t.Helper()
		if _, err := svc.Append(ctx, AppendRequest{
			Strategy:  StrategyInvestigation,
			Namespace: "/sre/investigations/alice/s1",
			ActorID:   "alice",
			Content:   map[string]any{"summary": summary},
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	appendInv("checkout pods in CrashLoopBackOff")
	appendInv("latency spike on payments")

	items, err := svc.RetrieveKeywordOrRecent(ctx, Query{
		Strategy: StrategyInvestigation,
		ActorID:  "alice",
		Text:     "crash",
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 match, got %d", len(items))
	}
	summary := items[0].Content.(map[string]any)["summary"]
	if summary != "checkout pods in CrashLoopBackOff" {
		t.Errorf("unexpected match %v", summary)
	}
}

func TestRecentTurns(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	writer := NewConversationWriter(svc)

	var batch []Message
	for _, text := range []string{"hello", "checking pods", "found the issue", "rolled back"} {
		batch = append(batch, Message{Role: "user", Content: text})
	}
	if _, err := writer.SaveBatch(ctx, "alice", "s1", batch); err != nil {
		t.Fatalf("save batch: %v", err)
	}
	// Another session must not bleed in.
	if _, err := writer.SaveBatch(ctx, "alice", "s2", []Message{{Role: "user", Content: "other session"}}); err != nil {
		t.Fatalf("save batch: %v", err)
	}

	items, err := svc.RecentTurns(ctx, "alice", "s1", 2)
	if err != nil {
		t.Fatalf("recent turns: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(items))
	}
	for _, item := range items {
		if item.SessionID != "s1" {
			t.Errorf("unexpected session %q", item.SessionID)
		}
	}
}

func TestVectorCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
	}{
		{"nil", nil},
		{"empty", []float32{}},
		{"values", []float32{0.5, -1.25, 3e-7, math.MaxFloat32}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeVector(encodeVector(tt.in))
			if len(got) != len(tt.in) {
				t.Fatalf("round trip changed length: %d -> %d", len(tt.in), len(got))
			}
			for i := range tt.in {
				if got[i] != tt.in[i] {
					t.Errorf("index %d: got %v, want %v", i, got[i], tt.in[i])
				}
			}
		})
	}

	if v := decodeVector([]byte{1, 2, 3}); v != nil {
		t.Errorf("truncated blob should decode to nil, got %v", v)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("cosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseSQLiteTime(t *testing.T) {
	want := time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC)

	for _, s := range []string{
		"2026-03-01 12:30:45.000000000",
		"2026-03-01T12:30:45Z",
		"2026-03-01 12:30:45",
	} {
		got, err := parseSQLiteTime(s)
		if err != nil {
			t.Errorf("parse %q: %v", s, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parse %q = %v, want %v", s, got, want)
		}
	}

	if _, err := parseSQLiteTime("yesterday"); err == nil {
		t.Error("expected an error for an unparseable timestamp")
	}
}
