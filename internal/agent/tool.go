// Package agent implements EnhancedAgent: the top-level controller
// composing SmartPlanner, DAGExecutor, the cache tiers, DecisionMemory,
// and ContextWindowManager into a single streamed request lifecycle.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nexuscore/orcruntime/pkg/models"
)

// ToolDescriptor is the planner-facing metadata a tool may expose:
// name, description, and argument schema. The planner's LLM tier uses
// this to build its tool catalog prompt; L1/L2 tiers only need names.
type ToolDescriptor struct {
	Name            string
	Description     string
	ArgsSchema      map[string]any
	RequiresApproval bool
}

// Tool is the external collaborator every registered capability
// implements: an async invoke over a map of arguments, plus an
// optional descriptor for planner consumption.
type Tool interface {
	Descriptor() ToolDescriptor
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// ToolRegistry is the process-wide, name-keyed home for every
// registered Tool. It is the only place a tool's original shape is
// known; everywhere else in the core sees the normalized
// models.ToolHandle produced by Lookup.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry constructs an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool by its descriptor name.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Descriptor().Name] = tool
}

// Unregister removes a tool by name, if present.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns the raw Tool registered under name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Lookup satisfies executor.ToolLookup: it resolves name to the
// single normalized models.ToolHandle shape the executor consumes,
// regardless of the underlying Tool implementation. When the tool
// declares ArgsSchema, the returned handle validates args against it
// before invoking, so a planner-produced call with the wrong shape
// fails as an executor step error instead of reaching the tool.
func (r *ToolRegistry) Lookup(name string) (models.ToolHandle, bool) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	desc := t.Descriptor()
	if len(desc.ArgsSchema) == 0 {
		return t.Invoke, true
	}

	schema, err := compileArgsSchema(desc.Name, desc.ArgsSchema)
	if err != nil {
		slog.Warn("tool args schema invalid, skipping argument validation", "tool", desc.Name, "error", err)
		return t.Invoke, true
	}

	return func(ctx context.Context, args map[string]any) (any, error) {
		if err := validateArgs(schema, args); err != nil {
			return nil, fmt.Errorf("tool %q: invalid arguments: %w", desc.Name, err)
		}
		return t.Invoke(ctx, args)
	}, true
}

// schemaCache compiles each tool's ArgsSchema once, keyed by its
// marshaled form: Descriptor() may be called freshly on every
// Lookup, so caching on name alone would miss a changed schema
// under an unchanged name.
var schemaCache sync.Map

func compileArgsSchema(name string, raw map[string]any) (*jsonschema.Schema, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode args schema: %w", err)
	}
	key := name + ":" + string(encoded)
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}

	compiled, err := jsonschema.CompileString(name+".args.schema.json", string(encoded))
	if err != nil {
		return nil, fmt.Errorf("compile args schema: %w", err)
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

func validateArgs(schema *jsonschema.Schema, args map[string]any) error {
	encoded, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return schema.Validate(decoded)
}

// Descriptors returns every registered tool's descriptor, for the
// planner's tool catalog and for RequiresApproval lookups.
func (r *ToolRegistry) Descriptors() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDescriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Descriptor())
	}
	return out
}

// Names returns every registered tool's name, the catalog shape
// SmartPlanner's L3 tier needs.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	return out
}

// RequiresApproval reports whether name's descriptor is marked
// sensitive. An unregistered tool never requires approval; the
// executor will report it as not-registered separately.
func (r *ToolRegistry) RequiresApproval(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return false
	}
	return t.Descriptor().RequiresApproval
}

// HandleFunc adapts a plain function into a Tool with a minimal
// descriptor, for tests and for tools with no argument schema.
type HandleFunc struct {
	Desc   ToolDescriptor
	Handle models.ToolHandle
}

func (h HandleFunc) Descriptor() ToolDescriptor { return h.Desc }

func (h HandleFunc) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return h.Handle(ctx, args)
}

var _ Tool = HandleFunc{}
