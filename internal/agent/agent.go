// Package agent orchestrates one chat response cycle: retrieve
// knowledge and history, compose the prompt, call the model with
// bounded retry, dispatch any tool calls, then persist the exchange.
//
// Failure policy: knowledge retrieval failures degrade to an empty
// context, memory failures abort the cycle, exhausted generation
// retries produce a deterministic fallback reply, and a persistence
// failure never blocks delivery of an already generated reply.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hostline/concierge/internal/knowledge"
	"github.com/hostline/concierge/internal/log"
	"github.com/hostline/concierge/internal/memory"
	"github.com/hostline/concierge/internal/tools"
)

// Sentinel errors for the response cycle. ErrGeneration covers model
// call failures after all retries and tool loops that exceed their
// round budget; Respond converts it into the fallback reply, but the
// generation layer stays classifiable with errors.Is.
var (
	ErrInvalidInput = errors.New("agent: invalid input")
	ErrGeneration   = errors.New("agent: generation failed")
)

// fallbackMessage is delivered when generation fails after all
// retries. It is deterministic so callers and tests can rely on it.
const fallbackMessage = "I'm sorry, I couldn't process your message right now. Please try again in a moment."

// Model is the generation backend. Satisfied by genkit's ai.Model and
// by test doubles.
type Model interface {
	Name() string
	Generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error)
}

// KnowledgeSearcher retrieves business context for a message.
type KnowledgeSearcher interface {
	Query(ctx context.Context, text string, topK int, minScore float64) ([]knowledge.Result, error)
}

// ConversationStore reads and appends chat history.
type ConversationStore interface {
	Window(ctx context.Context, chatID string, maxTurns int) ([]memory.Turn, error)
	AppendExchange(ctx context.Context, chatID, userContent, assistantContent string) ([]memory.Turn, error)
}

// Dispatcher validates and executes model tool calls.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args map[string]any) (string, error)
	Definitions() []*ai.ToolDefinition
}

// Config tunes the response cycle. Zero values get defaults from
// validate.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxToolRounds  int
	TopK           int
	MinScore       float64
	WindowTurns    int
	// RequestsPerSecond caps model calls across all chats. Zero
	// disables the limiter.
	RequestsPerSecond float64
}

func (c *Config) validate() error {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("MaxAttempts must be at least 1")
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("MaxBackoff below InitialBackoff")
	}
	if c.MaxToolRounds == 0 {
		c.MaxToolRounds = 3
	}
	if c.MaxToolRounds < 0 {
		return fmt.Errorf("MaxToolRounds must not be negative")
	}
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.WindowTurns == 0 {
		c.WindowTurns = 20
	}
	return nil
}

// Reply is the outcome of one response cycle.
type Reply struct {
	Text      string
	ChatID    string
	ModelUsed string
	ToolsUsed []string
	Success   bool
	Persisted bool
	State     State
}

// Agent runs response cycles. Safe for concurrent use; cycles for the
// same chat are serialized.
type Agent struct {
	model     Model
	knowledge KnowledgeSearcher
	memory    ConversationStore
	tools     Dispatcher
	limiter   *rate.Limiter
	cfg       Config
	logger    log.Logger
	locks     *chatLocks
}

// New creates an Agent.
func New(model Model, ks KnowledgeSearcher, cs ConversationStore, d Dispatcher, cfg Config, logger log.Logger) (*Agent, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if ks == nil {
		return nil, fmt.Errorf("knowledge searcher is required")
	}
	if cs == nil {
		return nil, fmt.Errorf("conversation store is required")
	}
	if d == nil {
		return nil, fmt.Errorf("tool dispatcher is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("agent config: %w", err)
	}
	if logger == nil {
		logger = log.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Agent{
		model:     model,
		knowledge: ks,
		memory:    cs,
		tools:     d,
		limiter:   limiter,
		cfg:       cfg,
		logger:    logger,
		locks:     newChatLocks(),
	}, nil
}

// Respond runs one full cycle for an incoming message and returns the
// reply to deliver. A non-nil Reply with Success=false carries the
// fallback text; a nil Reply means the cycle aborted and the caller
// should surface an error to the sender.
func (a *Agent) Respond(ctx context.Context, chatID, message string) (*Reply, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, fmt.Errorf("%w: empty chat id", ErrInvalidInput)
	}
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidInput)
	}

	// One cycle at a time per chat, so history writes from concurrent
	// messages cannot interleave.
	mu := a.locks.lock(chatID)
	defer mu.Unlock()

	logger := a.logger.With("request_id", uuid.NewString(), "chat_id", chatID)
	logger.Info("message received", "state", StateReceived, "bytes", len(message))

	results, window, err := a.retrieve(ctx, logger, chatID, message)
	if err != nil {
		logger.Error("retrieval failed", "state", StateFailed, "error", err)
		return nil, err
	}

	logger.Debug("composing prompt",
		"state", StateComposing,
		"chunks", len(results),
		"history_turns", len(window))
	msgs := buildMessages(results, window, message)

	text, toolsUsed, err := a.generate(ctx, logger, msgs)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("cycle canceled", "state", StateFailed, "error", err)
			return nil, err
		}
		logger.Error("generation failed, delivering fallback", "state", StateFailed, "error", err)
		return &Reply{
			Text:      fallbackMessage,
			ChatID:    chatID,
			ModelUsed: a.model.Name(),
			ToolsUsed: toolsUsed,
			State:     StateFailed,
		}, nil
	}
	if strings.TrimSpace(text) == "" {
		logger.Warn("model returned empty text, substituting fallback")
		text = fallbackMessage
	}
	logger.Info("response generated", "state", StateResponded, "tools_used", toolsUsed)

	reply := &Reply{
		Text:      text,
		ChatID:    chatID,
		ModelUsed: a.model.Name(),
		ToolsUsed: toolsUsed,
		Success:   true,
		State:     StateResponded,
	}

	// Persistence is decoupled from delivery: the reply goes out even
	// if the exchange could not be stored.
	if _, err := a.memory.AppendExchange(ctx, chatID, message, text); err != nil {
		logger.Error("persisting exchange failed, delivering anyway", "error", err)
	} else {
		reply.Persisted = true
		reply.State = StatePersisted
		logger.Debug("exchange persisted", "state", StatePersisted)
	}
	return reply, nil
}

// retrieve fetches the conversation window and the knowledge context
// concurrently. A memory failure aborts; a knowledge failure degrades
// to an empty context.
func (a *Agent) retrieve(ctx context.Context, logger log.Logger, chatID, message string) ([]knowledge.Result, []memory.Turn, error) {
	logger.Debug("retrieving context", "state", StateRetrieving)

	var (
		results []knowledge.Result
		window  []memory.Turn
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		turns, err := a.memory.Window(gctx, chatID, a.cfg.WindowTurns)
		if err != nil {
			return fmt.Errorf("conversation window: %w", err)
		}
		window = turns
		return nil
	})
	g.Go(func() error {
		found, err := a.knowledge.Query(gctx, message, a.cfg.TopK, a.cfg.MinScore)
		if err != nil {
			logger.Warn("knowledge retrieval failed, continuing without context", "error", err)
			return nil
		}
		results = found
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return results, window, nil
}

// generate drives the model and the tool loop until the model produces
// a plain text answer or the round budget runs out.
func (a *Agent) generate(ctx context.Context, logger log.Logger, msgs []*ai.Message) (string, []string, error) {
	defs := a.tools.Definitions()
	var toolsUsed []string

	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return "", toolsUsed, err
		}
		logger.Debug("calling model", "state", StateGenerating, "round", round)
		resp, err := a.generateWithRetry(ctx, &ai.ModelRequest{Messages: msgs, Tools: defs})
		if err != nil {
			return "", toolsUsed, err
		}

		reqs := resp.ToolRequests()
		if len(reqs) == 0 {
			return resp.Text(), toolsUsed, nil
		}
		if round >= a.cfg.MaxToolRounds {
			return "", toolsUsed, fmt.Errorf("%w: tool loop exceeded %d rounds", ErrGeneration, a.cfg.MaxToolRounds)
		}

		logger.Debug("dispatching tools",
			"state", StateToolDispatch,
			"round", round,
			"requests", len(reqs))

		var (
			parts      []*ai.Part
			roundTools []string
		)
		unknown := false
		for _, tr := range reqs {
			out, err := a.tools.Dispatch(ctx, tr.Name, toArgs(tr.Input))
			switch {
			case errors.Is(err, tools.ErrNotFound):
				logger.Warn("model requested unknown tool", "tool", tr.Name)
				unknown = true
			case err != nil:
				// Argument and execution failures are surfaced to the
				// model so it can recover or apologize.
				logger.Warn("tool dispatch failed", "tool", tr.Name, "error", err)
				parts = append(parts, toolResponsePart(tr, fmt.Sprintf("tool error: %v", err)))
			default:
				roundTools = append(roundTools, tr.Name)
				parts = append(parts, toolResponsePart(tr, out))
			}
		}

		if unknown {
			// The model asked for a tool that does not exist. Drop the
			// whole tool exchange, including any results from this
			// round, and request a plain answer instead of feeding the
			// hallucinated call back in.
			resp, err := a.generateWithRetry(ctx, &ai.ModelRequest{Messages: msgs})
			if err != nil {
				return "", toolsUsed, err
			}
			return resp.Text(), toolsUsed, nil
		}

		toolsUsed = append(toolsUsed, roundTools...)
		msgs = append(msgs, resp.Message)
		msgs = append(msgs, &ai.Message{Role: ai.RoleTool, Content: parts})
	}
}

func toolResponsePart(tr *ai.ToolRequest, output string) *ai.Part {
	return ai.NewToolResponsePart(&ai.ToolResponse{
		Name:   tr.Name,
		Ref:    tr.Ref,
		Output: output,
	})
}

// toArgs normalizes a tool request's input into the map form the
// registry validates.
func toArgs(input any) map[string]any {
	if input == nil {
		return map[string]any{}
	}
	if m, ok := input.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(input)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{}
	}
	return m
}
