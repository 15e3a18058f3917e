// Package tools exposes the memory operations as schema-validated adk
// function tools for the supervisor's planning agent.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/easeaico/sre-memory-agent/internal/memory"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

// ValidationError rejects a tool invocation before any store access. No
// partial write or read happens for an invalid request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Adapter validates tool arguments and dispatches to the event store. The
// adk handlers below are thin wrappers around its methods so the same paths
// are callable with a plain context in tests.
type Adapter struct {
	events *memory.Service
}

// NewAdapter creates an adapter over the given event store.
func NewAdapter(events *memory.Service) *Adapter {
	return &Adapter{events: events}
}

// --- Tool Input/Output Structs ---

// RetrieveMemoryArgs is the input for the retrieve_memory tool. MaxResults
// is a pointer so an explicit 0 can be rejected while absence defaults to 20.
type RetrieveMemoryArgs struct {
	MemoryType      string `json:"memory_type" jsonschema:"Which memory bucket to search: preference for user prefs, infrastructure for infra knowledge, or investigation for past summaries"`
	ActorID         string `json:"actor_id,omitempty" jsonschema:"User id for preferences/investigations; agent id for infrastructure"`
	Query           string `json:"query,omitempty" jsonschema:"Free-text query for semantic/keyword search; * returns the most recent"`
	MaxResults      *int   `json:"max_results,omitempty" jsonschema:"Result cap, between 1 and 100"`
	SessionID       string `json:"session_id,omitempty" jsonschema:"Current session for scoping"`
	NamespacePrefix string `json:"namespace_prefix,omitempty" jsonschema:"Optional namespace prefix filter like /sre/users/{user}/preferences"`
}

// RetrieveMemoryResult is the output for the retrieve_memory tool.
type RetrieveMemoryResult struct {
	OK    bool          `json:"ok"`
	Items []memory.Item `json:"items,omitempty"`
	Error string        `json:"error,omitempty"`
}

// SavePreferenceArgs is the input for the save_preference tool.
type SavePreferenceArgs struct {
	UserID  string         `json:"user_id"`
	Content map[string]any `json:"content" jsonschema:"JSON blob of user preferences"`
}

// SaveInfrastructureArgs is the input for the save_infrastructure tool.
type SaveInfrastructureArgs struct {
	AgentName string         `json:"agent_name" jsonschema:"e.g. kubernetes-agent"`
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id"`
	Content   map[string]any `json:"content" jsonschema:"JSON blob of infrastructure knowledge"`
}

// SaveInvestigationArgs is the input for the save_investigation tool.
type SaveInvestigationArgs struct {
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id"`
	Summary   map[string]any `json:"summary" jsonschema:"Investigation summary: findings/timeline/actions"`
}

// SaveResult is the output for all three save tools.
type SaveResult struct {
	OK    bool   `json:"ok"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// --- Operations ---

// RetrieveMemory dispatches to semantic or keyword/recency retrieval based
// on the memory type's fixed search mode. Callers never pick the mode.
func (a *Adapter) RetrieveMemory(ctx context.Context, args RetrieveMemoryArgs) ([]memory.Item, error) {
	strategy := memory.Strategy(strings.ToLower(args.MemoryType))
	switch strategy {
	case memory.StrategyPreference, memory.StrategyInfrastructure, memory.StrategyInvestigation:
	default:
		return nil, &ValidationError{Field: "memory_type", Reason: "must be preference, infrastructure or investigation"}
	}

	maxResults := 20
	if args.MaxResults != nil {
		maxResults = *args.MaxResults
	}
	if maxResults < 1 || maxResults > 100 {
		return nil, &ValidationError{Field: "max_results", Reason: "must be between 1 and 100"}
	}

	queryText := args.Query
	if queryText == "" {
		queryText = "*"
	}

	q := memory.Query{
		Strategy:        strategy,
		ActorID:         args.ActorID,
		SessionID:       args.SessionID,
		NamespacePrefix: args.NamespacePrefix,
		Text:            queryText,
		Limit:           maxResults,
	}
	if strategy.Mode() == memory.SearchSemantic {
		return a.events.RetrieveSemantic(ctx, q)
	}
	return a.events.RetrieveKeywordOrRecent(ctx, q)
}

// SavePreference persists a user preference blob.
func (a *Adapter) SavePreference(ctx context.Context, args SavePreferenceArgs) (string, error) {
	if args.UserID == "" {
		return "", &ValidationError{Field: "user_id", Reason: "is required"}
	}
	if len(args.Content) == 0 {
		return "", &ValidationError{Field: "content", Reason: "is required"}
	}

	return a.events.Append(ctx, memory.AppendRequest{
		Strategy:  memory.StrategyPreference,
		Namespace: fmt.Sprintf("/sre/users/%s/preferences", args.UserID),
		ActorID:   args.UserID,
		Content:   args.Content,
	})
}

// SaveInfrastructure persists infrastructure knowledge extracted from an
// agent run.
func (a *Adapter) SaveInfrastructure(ctx context.Context, args SaveInfrastructureArgs) (string, error) {
	if args.AgentName == "" {
		return "", &ValidationError{Field: "agent_name", Reason: "is required"}
	}
	if args.UserID == "" {
		return "", &ValidationError{Field: "user_id", Reason: "is required"}
	}
	if args.SessionID == "" {
		return "", &ValidationError{Field: "session_id", Reason: "is required"}
	}
	if len(args.Content) == 0 {
		return "", &ValidationError{Field: "content", Reason: "is required"}
	}

	return a.events.Append(ctx, memory.AppendRequest{
		Strategy:  memory.StrategyInfrastructure,
		Namespace: fmt.Sprintf("/sre/infrastructure/%s/%s", args.AgentName, args.UserID),
		ActorID:   args.AgentName,
		SessionID: args.SessionID,
		Content:   args.Content,
	})
}

// SaveInvestigation persists an investigation summary.
func (a *Adapter) SaveInvestigation(ctx context.Context, args SaveInvestigationArgs) (string, error) {
	if args.UserID == "" {
		return "", &ValidationError{Field: "user_id", Reason: "is required"}
	}
	if args.SessionID == "" {
		return "", &ValidationError{Field: "session_id", Reason: "is required"}
	}
	if len(args.Summary) == 0 {
		return "", &ValidationError{Field: "summary", Reason: "is required"}
	}

	return a.events.Append(ctx, memory.AppendRequest{
		Strategy:  memory.StrategyInvestigation,
		Namespace: fmt.Sprintf("/sre/investigations/%s/%s", args.UserID, args.SessionID),
		ActorID:   args.UserID,
		SessionID: args.SessionID,
		Content:   args.Summary,
	})
}

// --- Tool declarations ---

func createRetrieveMemoryTool(a *Adapter) (tool.Tool, error) {
	handler := func(ctx tool.Context, args RetrieveMemoryArgs) (RetrieveMemoryResult, error) {
		items, err := a.RetrieveMemory(ctx, args)
		if err != nil {
			return RetrieveMemoryResult{OK: false, Error: err.Error()}, nil
		}
		if items == nil {
			items = []memory.Item{}
		}
		return RetrieveMemoryResult{OK: true, Items: items}, nil
	}

	return functiontool.New(functiontool.Config{
		Name: "retrieve_memory",
		Description: "Retrieve long-term memory for planning. " +
			"Use memory_type='preference' for user prefs, 'infrastructure' for infra knowledge, " +
			"or 'investigation' for past summaries. Returns a list of items with content.",
	}, handler)
}

func createSavePreferenceTool(a *Adapter) (tool.Tool, error) {
	handler := func(ctx tool.Context, args SavePreferenceArgs) (SaveResult, error) {
		id, err := a.SavePreference(ctx, args)
		if err != nil {
			return SaveResult{OK: false, Error: err.Error()}, nil
		}
		return SaveResult{OK: true, ID: id}, nil
	}

	return functiontool.New(functiontool.Config{
		Name:        "save_preference",
		Description: "Persist user preferences (report style, escalation destinations, etc.)",
	}, handler)
}

func createSaveInfrastructureTool(a *Adapter) (tool.Tool, error) {
	handler := func(ctx tool.Context, args SaveInfrastructureArgs) (SaveResult, error) {
		id, err := a.SaveInfrastructure(ctx, args)
		if err != nil {
			return SaveResult{OK: false, Error: err.Error()}, nil
		}
		return SaveResult{OK: true, ID: id}, nil
	}

	return functiontool.New(functiontool.Config{
		Name:        "save_infrastructure",
		Description: "Persist infrastructure knowledge extracted from agent runs (patterns, baselines).",
	}, handler)
}

func createSaveInvestigationTool(a *Adapter) (tool.Tool, error) {
	handler := func(ctx tool.Context, args SaveInvestigationArgs) (SaveResult, error) {
		id, err := a.SaveInvestigation(ctx, args)
		if err != nil {
			return SaveResult{OK: false, Error: err.Error()}, nil
		}
		return SaveResult{OK: true, ID: id}, nil
	}

	return functiontool.New(functiontool.Config{
		Name:        "save_investigation",
		Description: "Persist an investigation summary (timeline/findings/actions).",
	}, handler)
}

// BuildTools creates the four memory tools over the given adapter.
func BuildTools(a *Adapter) ([]tool.Tool, error) {
	var tools []tool.Tool

	retrieveTool, err := createRetrieveMemoryTool(a)
	if err != nil {
		return nil, fmt.Errorf("create retrieve_memory tool: %w", err)
	}
	tools = append(tools, retrieveTool)

	savePrefTool, err := createSavePreferenceTool(a)
	if err != nil {
		return nil, fmt.Errorf("create save_preference tool: %w", err)
	}
	tools = append(tools, savePrefTool)

	saveInfraTool, err := createSaveInfrastructureTool(a)
	if err != nil {
		return nil, fmt.Errorf("create save_infrastructure tool: %w", err)
	}
	tools = append(tools, saveInfraTool)

	saveInvTool, err := createSaveInvestigationTool(a)
	if err != nil {
		return nil, fmt.Errorf("create save_investigation tool: %w", err)
	}
	tools = append(tools, saveInvTool)

	return tools, nil
}
