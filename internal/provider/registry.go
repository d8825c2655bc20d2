package provider

import (
	"sort"
	"sync"
)

// Registry holds the named fulfillment providers and the configured default.
// Reads vastly outnumber writes: lookups happen on every orchestration run
// and webhook, enable/disable only on operator action, so access is guarded
// by an RWMutex.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	enabled     map[string]bool
	defaultName string
}

// NewRegistry creates an empty registry with the given default provider name.
func NewRegistry(defaultName string) *Registry {
	return &Registry{
		providers:   make(map[string]Provider),
		enabled:     make(map[string]bool),
		defaultName: defaultName,
	}
}

// Register adds a provider under its own name. Registered providers start
// enabled. Re-registering a name replaces the previous adapter.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	r.enabled[p.Name()] = true
}

// Get returns the provider registered under name. An empty name selects the
// configured default. Fails with ErrProviderNotFound or ErrProviderDisabled.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultName
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrProviderNotFound
	}
	if !r.enabled[name] {
		return nil, ErrProviderDisabled
	}
	return p, nil
}

// DefaultName returns the configured default provider name.
func (r *Registry) DefaultName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// SetEnabled enables or disables a registered provider at runtime.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return ErrProviderNotFound
	}
	r.enabled[name] = enabled
	return nil
}

// Info describes a registered provider for the admin listing.
type Info struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Default bool   `json:"default"`
}

// List returns all registered providers sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, Info{
			Name:    name,
			Enabled: r.enabled[name],
			Default: name == r.defaultName,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
