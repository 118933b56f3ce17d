package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type echoInput struct {
	Text  string `json:"text" jsonschema_description:"Text to echo back"`
	Count int    `json:"count,omitempty" jsonschema_description:"Repeat count"`
}

func newEchoTool(t *testing.T) *Tool {
	t.Helper()
	tool, err := New("echo", "Echo text back.", func(_ context.Context, in echoInput) (string, error) {
		if in.Count <= 0 {
			in.Count = 1
		}
		return strings.Repeat(in.Text, in.Count), nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tool
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(newEchoTool(t)); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(newEchoTool(t)); !errors.Is(err, ErrConflict) {
		t.Fatalf("second register = %v, want ErrConflict", err)
	}
}

func TestDispatchSuccess(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(newEchoTool(t)); err != nil {
		t.Fatalf("register: %v", err)
	}

	out, err := r.Dispatch(context.Background(), "echo", map[string]any{
		"text": "ab", "count": 3,
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if out != "ababab" {
		t.Errorf("out = %q, want %q", out, "ababab")
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Dispatch(context.Background(), "nope", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDispatchInvalidArgs(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(newEchoTool(t)); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Wrong type for a declared property must fail validation before
	// the handler runs.
	_, err := r.Dispatch(context.Background(), "echo", map[string]any{
		"text": 42,
	})
	if !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("err = %v, want ErrInvalidArgs", err)
	}
}

func TestDispatchExecutionError(t *testing.T) {
	boom := fmt.Errorf("backend unavailable")
	tool, err := New("fail", "Always fails.", func(_ context.Context, _ echoInput) (string, error) {
		return "", boom
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := NewRegistry()
	if err := r.Register(tool); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err = r.Dispatch(context.Background(), "fail", map[string]any{"text": "x"})
	if !errors.Is(err, ErrExecution) {
		t.Fatalf("err = %v, want ErrExecution", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped handler error", err)
	}
}

func TestDefinitionsSortedAndComplete(t *testing.T) {
	r := NewRegistry()
	if err := RegisterPropertyTools(r); err != nil {
		t.Fatalf("RegisterPropertyTools: %v", err)
	}

	defs := r.Definitions()
	want := []string{"checkAvailability", "listProperties", "propertyDetails"}
	if len(defs) != len(want) {
		t.Fatalf("got %d definitions, want %d", len(defs), len(want))
	}
	for i, d := range defs {
		if d.Name != want[i] {
			t.Errorf("defs[%d].Name = %q, want %q", i, d.Name, want[i])
		}
		if d.Description == "" {
			t.Errorf("defs[%d] has empty description", i)
		}
		if d.InputSchema == nil {
			t.Errorf("defs[%d] has nil input schema", i)
		}
	}
}
