// Package app wires the service together: database pool, genkit
// provider, stores, tool registry, and the agent. The cmd package
// calls Setup once and hands the result to the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hostline/concierge/db"
	"github.com/hostline/concierge/internal/agent"
	"github.com/hostline/concierge/internal/config"
	"github.com/hostline/concierge/internal/knowledge"
	"github.com/hostline/concierge/internal/log"
	"github.com/hostline/concierge/internal/memory"
	"github.com/hostline/concierge/internal/tools"
)

// App holds all long-lived components.
type App struct {
	Config *config.Config
	Logger log.Logger

	Pool     *pgxpool.Pool
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Model    ai.Model

	Knowledge *knowledge.Store
	Memory    *memory.Store
	Tools     *tools.Registry
	Agent     *agent.Agent

	cleanups []func()
}

// Setup constructs the full component graph. On error, everything
// already constructed is released.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, err error) {
	if logger == nil {
		logger = log.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	pool, cleanup, err := providePool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Pool = pool
	a.cleanups = append(a.cleanups, cleanup)

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.Embedder = provideEmbedder(g, cfg)
	if a.Embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.AI.Embedder, cfg.AI.Provider)
	}
	a.Model = genkit.LookupModel(g, cfg.FullModelName())
	if a.Model == nil {
		return nil, fmt.Errorf("model %q not found for provider %q", cfg.FullModelName(), cfg.AI.Provider)
	}

	if a.Knowledge, err = knowledge.NewStore(pool, a.Embedder, cfg.AI.EmbeddingDim, logger); err != nil {
		return nil, fmt.Errorf("knowledge store: %w", err)
	}
	if a.Memory, err = memory.NewStore(pool, cfg.Memory.RetentionCap, logger); err != nil {
		return nil, fmt.Errorf("memory store: %w", err)
	}

	a.Tools = tools.NewRegistry()
	if err := tools.RegisterPropertyTools(a.Tools); err != nil {
		return nil, fmt.Errorf("registering property tools: %w", err)
	}

	a.Agent, err = agent.New(a.Model, a.Knowledge, a.Memory, a.Tools, agent.Config{
		MaxAttempts:       cfg.Agent.MaxAttempts,
		InitialBackoff:    cfg.Agent.InitialBackoff,
		MaxBackoff:        cfg.Agent.MaxBackoff,
		MaxToolRounds:     cfg.Agent.MaxToolRounds,
		TopK:              cfg.Retrieval.TopK,
		MinScore:          cfg.Retrieval.MinScore,
		WindowTurns:       cfg.Memory.WindowTurns,
		RequestsPerSecond: cfg.Agent.RequestsPerSecond,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}

	logger.Info("application ready",
		"provider", cfg.AI.Provider,
		"model", cfg.FullModelName(),
		"embedder", cfg.AI.Embedder,
		"tools", a.Tools.Names())
	return a, nil
}

// CheckProvider verifies the model backend answers by running a tiny
// embedding request. The readiness probe uses it.
func (a *App) CheckProvider(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := a.Embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText("ping", nil)},
	})
	if err != nil {
		return fmt.Errorf("probing embedder: %w", err)
	}
	return nil
}

// Close releases resources in reverse construction order.
func (a *App) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}

// providePool runs migrations and opens the connection pool.
func providePool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, pool.Close, nil
}

// provideGenkit initializes genkit with the configured provider.
// Ollama needs explicit model and embedder registration; googleai
// auto-discovers.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	switch cfg.AI.Provider {
	case "ollama":
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.AI.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.AI.Model,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.AI.OllamaHost, cfg.AI.Embedder, nil)
		logger.Info("initialized genkit with ollama provider",
			"model", cfg.AI.Model, "host", cfg.AI.OllamaHost)
		return g, nil

	default: // "googleai"
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: cfg.AI.APIKey}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
		logger.Info("initialized genkit with googleai provider", "model", cfg.AI.Model)
		return g, nil
	}
}

// provideEmbedder looks up the embedder registered by the provider
// plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.AI.Provider {
	case "ollama":
		return ollama.Embedder(g, cfg.AI.OllamaHost)
	default: // "googleai"
		return googlegenai.GoogleAIEmbedder(g, cfg.AI.Embedder)
	}
}
