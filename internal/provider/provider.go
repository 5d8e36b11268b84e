// Package provider keeps the chat completers available to the summarizer.
package provider

import (
	"fmt"

	"FinMuse/internal/ports"
)

// Registry maps provider names to chat completers.
type Registry struct {
	completers map[string]ports.ChatCompleter
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{completers: map[string]ports.ChatCompleter{}}
}

// Register adds or replaces a completer under its own name.
func (r *Registry) Register(completer ports.ChatCompleter) {
	if completer == nil {
		return
	}
	if r.completers == nil {
		r.completers = map[string]ports.ChatCompleter{}
	}
	r.completers[completer.Name()] = completer
}

// Resolve returns a completer by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.ChatCompleter, error) {
	if completer, ok := r.completers[name]; ok {
		return completer, nil
	}
	return nil, fmt.Errorf("llm provider %s is not registered", name)
}
