package agent

import (
	"context"
	"strings"
	"testing"
)

func echoTool(name string, schema map[string]any) HandleFunc {
	return HandleFunc{
		Desc: ToolDescriptor{Name: name, ArgsSchema: schema},
		Handle: func(_ context.Context, args map[string]any) (any, error) {
			return args, nil
		},
	}
}

func TestLookupValidatesArgsAgainstSchema(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"to": map[string]any{"type": "string"}},
		"required":   []any{"to"},
	}
	registry := NewToolRegistry()
	registry.Register(echoTool("send_email", schema))

	handle, ok := registry.Lookup("send_email")
	if !ok {
		t.Fatal("expected send_email to be registered")
	}

	if _, err := handle(context.Background(), map[string]any{}); err == nil {
		t.Error("expected an error for missing required field")
	} else if !strings.Contains(err.Error(), "invalid arguments") {
		t.Errorf("unexpected error: %v", err)
	}

	if _, err := handle(context.Background(), map[string]any{"to": "a@b.com"}); err != nil {
		t.Errorf("unexpected error for valid args: %v", err)
	}
}

func TestLookupSkipsValidationWithoutSchema(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(echoTool("no_schema", nil))

	handle, ok := registry.Lookup("no_schema")
	if !ok {
		t.Fatal("expected no_schema to be registered")
	}
	if _, err := handle(context.Background(), map[string]any{"anything": 1}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLookupToleratesMalformedSchema(t *testing.T) {
	registry := NewToolRegistry()
	// "type": 5 isn't a legal JSON Schema type keyword value; compilation
	// should fail and Lookup should fall back to unvalidated invocation
	// rather than make every call to this tool fail.
	registry.Register(echoTool("bad_schema", map[string]any{"type": 5}))

	handle, ok := registry.Lookup("bad_schema")
	if !ok {
		t.Fatal("expected bad_schema to be registered")
	}
	if _, err := handle(context.Background(), map[string]any{}); err != nil {
		t.Errorf("expected invocation to proceed despite malformed schema, got: %v", err)
	}
}
