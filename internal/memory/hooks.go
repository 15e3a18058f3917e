package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// AgentResponse is the closed set of shapes the extraction hook recognizes
// in an agent's output. Preferences wins over UserPreferences;
// InfrastructureKnowledge wins over Knowledge. Anything an agent returns
// beyond these fields is ignored.
type AgentResponse struct {
	Preferences             map[string]any   `json:"preferences,omitempty"`
	UserPreferences         map[string]any   `json:"user_preferences,omitempty"`
	InfrastructureKnowledge InfraItems       `json:"infrastructure_knowledge,omitempty"`
	Knowledge               []map[string]any `json:"knowledge,omitempty"`
}

// InfraItems accepts either a single JSON object or an array of objects.
// Array elements that are not objects are dropped rather than rejected.
type InfraItems []map[string]any

func (it *InfraItems) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*it = nil
		return nil
	}
	if trimmed[0] == '{' {
		var single map[string]any
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*it = InfraItems{single}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	items := make(InfraItems, 0, len(raw))
	for _, r := range raw {
		var m map[string]any
		if err := json.Unmarshal(r, &m); err != nil || m == nil {
			continue
		}
		items = append(items, m)
	}
	*it = items
	return nil
}

// ParseAgentResponse decodes raw agent output into an AgentResponse.
// Malformed input yields the zero value, which extracts to nothing; absence
// of recognized keys is the normal case, not an error.
func ParseAgentResponse(raw []byte) AgentResponse {
	var resp AgentResponse
	_ = json.Unmarshal(raw, &resp)
	return resp
}

// extractDrafts derives the writes an agent response justifies. It is pure:
// no store access and no failure modes. Unrecognized or empty shapes simply
// produce no drafts.
func extractDrafts(agentName string, resp AgentResponse, userID, sessionID string) []AppendRequest {
	var drafts []AppendRequest

	prefs := resp.Preferences
	if len(prefs) == 0 {
		prefs = resp.UserPreferences
	}
	if len(prefs) > 0 {
		drafts = append(drafts, AppendRequest{
			Strategy:  StrategyPreference,
			Namespace: fmt.Sprintf("/sre/users/%s/preferences", userID),
			ActorID:   userID,
			Content:   prefs,
		})
	}

	items := []map[string]any(resp.InfrastructureKnowledge)
	if resp.InfrastructureKnowledge == nil {
		// The knowledge key is a fallback, consulted only when the primary
		// key was absent entirely.
		items = resp.Knowledge
	}
	for _, item := range items {
		if item == nil {
			continue
		}
		drafts = append(drafts, AppendRequest{
			Strategy:  StrategyInfrastructure,
			Namespace: fmt.Sprintf("/sre/infrastructure/%s/%s", agentName, userID),
			ActorID:   agentName,
			SessionID: sessionID,
			Content:   item,
		})
	}

	return drafts
}

// HookProvider records memory events derived from agent output after an
// agent finishes a step. Writes are conservative: only the explicit shapes
// in AgentResponse produce events, everything else is silently ignored.
type HookProvider struct {
	events *Service
}

// NewHookProvider creates a hook over the given event store.
func NewHookProvider(events *Service) *HookProvider {
	return &HookProvider{events: events}
}

// OnAgentResponse extracts preference and infrastructure events from the
// response and appends them, returning how many were written. A response
// with no recognized shape writes nothing and returns 0 with no error.
func (h *HookProvider) OnAgentResponse(ctx context.Context, agentName string, resp AgentResponse, userID, sessionID string) (int, error) {
	written := 0
	for _, draft := range extractDrafts(agentName, resp, userID, sessionID) {
		if _, err := h.events.Append(ctx, draft); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
