package config

import "fmt"

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}

	switch c.AI.Provider {
	case "googleai", "ollama":
	default:
		return fmt.Errorf("%w: unknown ai.provider %q", ErrInvalidConfig, c.AI.Provider)
	}
	if c.AI.Model == "" {
		return fmt.Errorf("%w: ai.model is required", ErrInvalidConfig)
	}
	if c.AI.Embedder == "" {
		return fmt.Errorf("%w: ai.embedder is required", ErrInvalidConfig)
	}
	if c.AI.EmbeddingDim <= 0 {
		return fmt.Errorf("%w: ai.embedding_dim must be positive", ErrInvalidConfig)
	}

	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: retrieval.top_k must be positive", ErrInvalidConfig)
	}
	if c.Retrieval.MinScore < -1 || c.Retrieval.MinScore > 1 {
		return fmt.Errorf("%w: retrieval.min_score %v outside [-1, 1]", ErrInvalidConfig, c.Retrieval.MinScore)
	}

	if c.Memory.WindowTurns <= 0 {
		return fmt.Errorf("%w: memory.window_turns must be positive", ErrInvalidConfig)
	}
	if c.Memory.RetentionCap < c.Memory.WindowTurns {
		return fmt.Errorf("%w: memory.retention_cap %d below window_turns %d",
			ErrInvalidConfig, c.Memory.RetentionCap, c.Memory.WindowTurns)
	}

	if c.Agent.MaxAttempts < 1 {
		return fmt.Errorf("%w: agent.max_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.Agent.InitialBackoff <= 0 || c.Agent.MaxBackoff < c.Agent.InitialBackoff {
		return fmt.Errorf("%w: agent backoff bounds are inconsistent", ErrInvalidConfig)
	}
	if c.Agent.MaxToolRounds < 0 {
		return fmt.Errorf("%w: agent.max_tool_rounds must not be negative", ErrInvalidConfig)
	}
	return nil
}
