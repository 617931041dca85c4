// Package tools holds the name->handler registry the workflow executor and
// the tool server dispatch through. Tool parameters are validated against
// their JSON Schemas before the handler runs.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
)

// Handler executes one tool call.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Definition describes a tool to callers.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type registered struct {
	def     Definition
	schema  *jsonschema.Schema
	handler Handler
}

// Registry is a thread-safe tool registry.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registered
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]registered{}}
}

// Register adds a tool, compiling its parameter schema.
func (r *Registry) Register(def Definition, h Handler) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if h == nil {
		return fmt.Errorf("tool %s missing handler", name)
	}
	schema, err := compileSchema(def.Parameters)
	if err != nil {
		return fmt.Errorf("tool %s schema: %w", name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = registered{def: def, schema: schema, handler: h}
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Names lists registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Definitions lists tool definitions, sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute validates args against the tool's schema and runs its handler.
// Unknown tools and schema violations surface as InvalidArgument.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, uia.ErrInvalidArgument("unknown tool: %s", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := t.schema.Validate(normalizeForSchema(args)); err != nil {
		return nil, uia.ErrInvalidArgument("tool %s arguments: %v", name, err)
	}
	return t.handler(ctx, args)
}

func compileSchema(params map[string]any) (*jsonschema.Schema, error) {
	if params == nil {
		params = map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", strings.NewReader(string(b))); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
}

// normalizeForSchema round-trips args through JSON so Go-native numeric
// types validate like their wire forms.
func normalizeForSchema(args map[string]any) any {
	b, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return args
	}
	return v
}
