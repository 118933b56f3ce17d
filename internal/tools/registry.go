// Package tools provides the tool registry the agent dispatches model
// tool calls through. Every tool carries a JSON schema derived from its
// input struct; arguments are validated against the schema before the
// handler runs, so handlers never see malformed input.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/jsonschema-go/jsonschema"
)

// Tool is a registered, schema-validated operation the model may call.
type Tool struct {
	name        string
	description string
	schema      *jsonschema.Schema
	resolved    *jsonschema.Resolved
	handler     func(ctx context.Context, args map[string]any) (string, error)
}

// Name returns the tool's wire name.
func (t *Tool) Name() string { return t.name }

// Description returns the text the model uses to pick the tool.
func (t *Tool) Description() string { return t.description }

// New builds a Tool whose input schema is derived from In's struct
// tags. The handler receives arguments already validated and decoded.
func New[In any](name, description string, handler func(ctx context.Context, in In) (string, error)) (*Tool, error) {
	if name == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("tool %s: handler is required", name)
	}

	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return nil, fmt.Errorf("tool %s: derive schema: %w", name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("tool %s: resolve schema: %w", name, err)
	}

	erased := func(ctx context.Context, args map[string]any) (string, error) {
		data, err := json.Marshal(args)
		if err != nil {
			return "", fmt.Errorf("marshal args: %w", err)
		}
		var in In
		if err := json.Unmarshal(data, &in); err != nil {
			return "", fmt.Errorf("decode args: %w", err)
		}
		return handler(ctx, in)
	}

	return &Tool{
		name:        name,
		description: description,
		schema:      schema,
		resolved:    resolved,
		handler:     erased,
	}, nil
}

// Registry holds named tools. Safe for concurrent use; registration
// normally happens once at startup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Duplicate names return ErrConflict.
func (r *Registry) Register(t *Tool) error {
	if t == nil {
		return fmt.Errorf("tool is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.name]; exists {
		return fmt.Errorf("%w: %s", ErrConflict, t.name)
	}
	r.tools[t.name] = t
	return nil
}

// Dispatch validates args against the tool's schema and runs its
// handler. Errors are classified: ErrNotFound for an unregistered name,
// ErrInvalidArgs for schema violations, ErrExecution for handler
// failures.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := t.resolved.Validate(args); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidArgs, name, err)
	}

	out, err := t.handler(ctx, args)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrExecution, name, err)
	}
	return out, nil
}

// Names returns registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the tool declarations advertised to the model,
// in sorted name order for stable prompts.
func (r *Registry) Definitions() []*ai.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]*ai.ToolDefinition, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		defs = append(defs, &ai.ToolDefinition{
			Name:        t.name,
			Description: t.description,
			InputSchema: schemaToMap(t.schema),
		})
	}
	return defs
}

// schemaToMap converts the derived schema to the loosely typed form the
// model wire format expects.
func schemaToMap(s *jsonschema.Schema) map[string]any {
	data, err := json.Marshal(s)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}
