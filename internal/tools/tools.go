// Package tools defines the capabilities the reasoning loop can invoke.
package tools

import (
	"context"
	"fmt"
	"strings"
)

// Tool is one callable capability. Input and output are plain text; a
// tool that needs structure parses its own input.
type Tool struct {
	Name        string
	Description string
	Handler     func(ctx context.Context, input string) (string, error)
}

// Registry holds the tool roster for one request. It is resolved at
// request setup and never mutated mid-request.
type Registry struct {
	tools map[string]*Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Re-registering a name replaces the tool but
// keeps its position in the roster.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get retrieves a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Describe renders the roster for the prompt, one "name: description"
// line per tool.
func (r *Registry) Describe() string {
	lines := make([]string, 0, len(r.order))
	for _, name := range r.order {
		lines = append(lines, fmt.Sprintf("%s: %s", name, r.tools[name].Description))
	}
	return strings.Join(lines, "\n")
}

// Invoke runs a tool and returns its result as an observation. Every
// failure, including an unknown tool name, is converted to text the
// model can read; the reasoning loop never aborts on a tool error.
func (r *Registry) Invoke(ctx context.Context, name, input string) string {
	t := r.tools[name]
	if t == nil {
		return fmt.Sprintf("no such tool: %s", name)
	}
	out, err := t.Handler(ctx, input)
	if err != nil {
		return fmt.Sprintf("tool %s failed: %v", name, err)
	}
	return out
}
