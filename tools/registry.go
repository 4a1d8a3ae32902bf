// Package tools provides the built-in tools and the registry agents use to
// look them up and declare them to a model.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/scholarkit/scholarkit-go/adapter/llm"
	"github.com/scholarkit/scholarkit-go/scholarkit"
)

// Registry is a thread-safe collection of tools keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]scholarkit.Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]scholarkit.Tool),
	}
}

// Register adds a tool to the registry.
//
// The tool must have a non-empty name, a JSON-Schema object for its
// parameters, and no name collision with an already registered tool.
func (r *Registry) Register(tool scholarkit.Tool) error {
	if tool == nil {
		return fmt.Errorf("cannot register nil tool")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("cannot register tool with empty name")
	}
	schema := tool.Schema()
	if schema == nil {
		return fmt.Errorf("tool %q has no schema", name)
	}
	if typ, _ := schema["type"].(string); typ != "object" {
		return fmt.Errorf("tool %q schema must be a JSON Schema object, got type %q", name, schema["type"])
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (scholarkit.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names in sorted order.
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

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Specs returns the function-calling declarations for every registered
// tool, in sorted name order, ready to pass to llm.WithTools.
func (r *Registry) Specs() []llm.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]llm.ToolSpec, 0, len(names))
	for _, name := range names {
		tool := r.tools[name]
		specs = append(specs, llm.ToolSpec{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Schema(),
		})
	}
	return specs
}

// Execute runs the named tool with the given parameters.
//
// An unknown tool name returns an unsuccessful ToolResult rather than an
// error, so the caller can feed the failure back to the model and let it
// recover.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]interface{}) (*scholarkit.ToolResult, error) {
	tool, ok := r.Get(name)
	if !ok {
		return scholarkit.NewToolError(fmt.Sprintf("unknown tool %q; available tools: %v", name, r.Names())), nil
	}
	return tool.Execute(ctx, params)
}
