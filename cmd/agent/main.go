// Package main is the entry point for the SRE supervisor agent.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/easeaico/sre-memory-agent/internal/config"
	"github.com/easeaico/sre-memory-agent/internal/embedding"
	"github.com/easeaico/sre-memory-agent/internal/memory"
	"github.com/easeaico/sre-memory-agent/internal/tools"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/cmd/launcher"
	"google.golang.org/adk/cmd/launcher/full"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/tool"
	"google.golang.org/genai"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	llmAgent, cleanup, err := initializeAgent(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize agent", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	launcherConfig := &launcher.Config{
		AgentLoader: agent.NewSingleLoader(llmAgent),
	}
	l := full.NewLauncher()
	if err := l.Execute(ctx, launcherConfig, os.Args[1:]); err != nil {
		slog.Error("failed to run agent", "error", err, "usage", l.CommandLineSyntax())
		os.Exit(1)
	}
}

// newProvider selects the embedding provider and wraps it with the
// memoization cache.
func newProvider(cfg config.Config) (embedding.Provider, error) {
	var provider embedding.Provider
	switch cfg.EmbeddingProvider {
	case "hash":
		provider = embedding.NewHash(0)
	default:
		provider = embedding.NewGoogle(cfg.GoogleAPIKey, cfg.EmbeddingModel)
	}
	return embedding.NewCached(provider, cfg.EmbedCacheEntries)
}

// newStore selects the persistence backend. The vector column width follows
// the configured provider.
func newStore(ctx context.Context, cfg config.Config, dims int) (memory.Store, error) {
	if cfg.Backend == "sqlite" {
		return memory.NewSQLiteStore(ctx, cfg.DSN)
	}
	return memory.NewPostgresStore(ctx, cfg.DSN, dims)
}

// initializeAgent wires the event store, the memory tools and the supervisor
// model together.
func initializeAgent(ctx context.Context, cfg config.Config) (agent.Agent, func(), error) {
	var (
		agentTools []tool.Tool
		cleanup    = func() {}
	)

	if cfg.MemoryEnabled {
		provider, err := newProvider(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create embedding provider: %w", err)
		}

		store, err := newStore(ctx, cfg, provider.Dimensions())
		if err != nil {
			return nil, nil, fmt.Errorf("open memory store: %w", err)
		}

		// Non-fatal: the database may still be starting. The first memory
		// operation against an unreachable store reports its own error.
		if err := store.InitSchema(ctx); err != nil {
			slog.Warn("memory schema initialization deferred", "error", err)
		}

		events := memory.NewService(store, provider)
		agentTools, err = tools.BuildTools(tools.NewAdapter(events))
		if err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("build memory tools: %w", err)
		}
		cleanup = func() { store.Close() }

		slog.Info("memory store ready", "backend", cfg.Backend, "embedding_provider", cfg.EmbeddingProvider)
	} else {
		slog.Info("memory disabled; supervisor runs without memory tools")
	}

	llmModel, err := gemini.NewModel(ctx, "gemini-2.0-flash", &genai.ClientConfig{
		APIKey:  cfg.GoogleAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create LLM model: %w", err)
	}

	llmAgent, err := llmagent.New(llmagent.Config{
		Name:        "sre_supervisor",
		Description: "SRE incident supervisor that plans investigations using long-term memory",
		Model:       llmModel,
		Instruction: supervisorPrompt,
		Tools:       agentTools,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create agent: %w", err)
	}

	return llmAgent, cleanup, nil
}

const supervisorPrompt = `You are an SRE supervisor coordinating incident investigations.

Before planning, check long-term memory:
- retrieve_memory with memory_type='preference' for how this user wants reports and escalations handled
- retrieve_memory with memory_type='infrastructure' for known patterns and baselines of the affected services
- retrieve_memory with memory_type='investigation' for summaries of past incidents (use query='*' for the most recent)

After an investigation concludes:
- save_investigation with a summary of findings, timeline and actions taken
- save_preference when the user states a durable preference
- save_infrastructure when an agent surfaces reusable knowledge about the infrastructure

Always explain which memories informed your plan.`
