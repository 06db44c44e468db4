package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownProvider is returned by Get for a name nothing is registered under.
var ErrUnknownProvider = errors.New("unknown chat provider")

type ProviderFactory func(ctx context.Context, model string) (Provider, error)

type registration struct {
	factory      ProviderFactory
	defaultModel string
}

// Registry resolves the CHAT_RESPONDER name to a Provider. Names are
// case-insensitive.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

func providerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds or replaces a provider. defaultModel is passed to the
// factory when Get is called without a model.
func (r *Registry) Register(name, defaultModel string, f ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[providerKey(name)] = registration{factory: f, defaultModel: strings.TrimSpace(defaultModel)}
}

func (r *Registry) Get(ctx context.Context, name, model string) (Provider, error) {
	r.mu.RLock()
	reg, ok := r.entries[providerKey(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownProvider, providerKey(name))
	}
	if model = strings.TrimSpace(model); model == "" {
		model = reg.defaultModel
	}
	return reg.factory(ctx, model)
}

// Names lists registered providers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
