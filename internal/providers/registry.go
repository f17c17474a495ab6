package providers

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend is one generation endpoint reachable through the upstream API.
// ID is the upstream model identifier, Label is the short name used by
// clients (and for the "<label>Raw" response fields).
type Backend struct {
	ID                string `yaml:"id" json:"id"`
	Label             string `yaml:"label" json:"label"`
	SupportsReasoning bool   `yaml:"supports_reasoning" json:"supportsReasoning"`
}

// Registry is the immutable, ordered table of known backends.
// It is built once at startup and shared read-only afterwards.
type Registry struct {
	backends []Backend
	byID     map[string]int
}

var defaultBackends = []Backend{
	{ID: "openai/gpt-5", Label: "gpt", SupportsReasoning: true},
	{ID: "anthropic/claude-sonnet-4.5", Label: "claude", SupportsReasoning: true},
	{ID: "google/gemini-2.5-pro", Label: "gemini", SupportsReasoning: true},
	{ID: "deepseek/deepseek-chat-v3.1", Label: "deepseek", SupportsReasoning: false},
}

func NewRegistry(backends ...Backend) (*Registry, error) {
	if len(backends) == 0 {
		return nil, errors.New("registry: no backends")
	}
	r := &Registry{
		backends: make([]Backend, 0, len(backends)),
		byID:     make(map[string]int, len(backends)),
	}
	labels := make(map[string]struct{}, len(backends))
	for _, b := range backends {
		b.ID = strings.TrimSpace(b.ID)
		b.Label = strings.TrimSpace(b.Label)
		if b.ID == "" || b.Label == "" {
			return nil, fmt.Errorf("registry: backend %q needs both id and label", b.ID)
		}
		if _, dup := r.byID[b.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate backend id %q", b.ID)
		}
		if _, dup := labels[b.Label]; dup {
			return nil, fmt.Errorf("registry: duplicate backend label %q", b.Label)
		}
		labels[b.Label] = struct{}{}
		r.byID[b.ID] = len(r.backends)
		r.backends = append(r.backends, b)
	}
	return r, nil
}

// DefaultRegistry returns the built-in backend table.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(defaultBackends...)
	if err != nil {
		panic(err)
	}
	return r
}

// LoadRegistry reads a YAML backend table of the form:
//
//	backends:
//	  - id: openai/gpt-5
//	    label: gpt
//	    supports_reasoning: true
func LoadRegistry(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading backends file: %w", err)
	}
	var doc struct {
		Backends []Backend `yaml:"backends"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parsing backends file %s: %w", path, err)
	}
	return NewRegistry(doc.Backends...)
}

func (r *Registry) Lookup(id string) (Backend, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Backend{}, false
	}
	return r.backends[i], true
}

// All returns a copy of the table in configuration order.
func (r *Registry) All() []Backend {
	out := make([]Backend, len(r.backends))
	copy(out, r.backends)
	return out
}

// Filter resolves ids against the registry, keeping the order of ids.
// Unknown and repeated ids are dropped.
func (r *Registry) Filter(ids []string) []Backend {
	out := make([]Backend, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		b, ok := r.Lookup(id)
		if !ok {
			continue
		}
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	return out
}
