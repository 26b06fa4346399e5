package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Handler processes the params of one call.
type Handler func(ctx context.Context, params json.RawMessage) (any, *Error)

// Method describes a registered method for rpc.methods.
type Method struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

type entry struct {
	summary string
	handler Handler
}

// MethodRegistry maps method names to handlers.
type MethodRegistry struct {
	methods map[string]entry
}

// NewMethodRegistry creates an empty registry.
func NewMethodRegistry() *MethodRegistry {
	return &MethodRegistry{methods: make(map[string]entry)}
}

// Register adds a handler. It panics when name is already taken.
func (r *MethodRegistry) Register(name, summary string, handler Handler) {
	if _, dup := r.methods[name]; dup {
		panic(fmt.Sprintf("jsonrpc: method %q registered twice", name))
	}
	r.methods[name] = entry{summary: summary, handler: handler}
}

// Lookup returns the handler for a method, or nil if not found.
func (r *MethodRegistry) Lookup(name string) Handler {
	return r.methods[name].handler
}

// Methods returns all registered method names, sorted.
func (r *MethodRegistry) Methods() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe lists every method with its summary, sorted by name.
func (r *MethodRegistry) Describe() []Method {
	out := make([]Method, 0, len(r.methods))
	for _, name := range r.Methods() {
		out = append(out, Method{Name: name, Summary: r.methods[name].summary})
	}
	return out
}
