// Package registry maps host names to data providers.
//
// With virtual hosting disabled every request goes to the default provider.
// With it enabled the request's host domain selects a provider by exact,
// case-sensitive match, falling back to the default.
package registry

import (
	"slices"
	"sync"

	"github.com/getmockd/vhostd/pkg/message"
	"github.com/getmockd/vhostd/pkg/provider"
)

// Registry is safe for concurrent use by the configuring goroutine and any
// number of dispatching goroutines.
type Registry struct {
	mu             sync.RWMutex
	virtualHosting bool
	defaultP       provider.Provider
	hosts          map[string]provider.Provider
}

// New returns an empty Registry with virtual hosting disabled.
func New() *Registry {
	return &Registry{hosts: make(map[string]provider.Provider)}
}

// SetVirtualHosting toggles host-based provider selection. A change made
// while requests are dispatched applies from the next resolution on.
func (r *Registry) SetVirtualHosting(enabled bool) {
	r.mu.Lock()
	r.virtualHosting = enabled
	r.mu.Unlock()
}

// VirtualHosting reports whether host-based provider selection is enabled.
func (r *Registry) VirtualHosting() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.virtualHosting
}

// SetDefault sets the provider used when no host-specific one applies.
func (r *Registry) SetDefault(p provider.Provider) {
	r.mu.Lock()
	r.defaultP = p
	r.mu.Unlock()
}

// Default returns the fallback provider, or nil when none is set.
func (r *Registry) Default() provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultP
}

// Set registers p for host, replacing any previous provider. A nil p removes
// the mapping.
func (r *Registry) Set(host string, p provider.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p == nil {
		delete(r.hosts, host)
		return
	}
	r.hosts[host] = p
}

// ForHost returns the provider registered for host, or nil.
func (r *Registry) ForHost(host string) provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hosts[host]
}

// Hosts returns the registered host names, sorted.
func (r *Registry) Hosts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hosts := make([]string, 0, len(r.hosts))
	for h := range r.hosts {
		hosts = append(hosts, h)
	}
	slices.Sort(hosts)
	return hosts
}

// Resolve picks the provider for req. It returns nil when neither a host
// provider nor a default is available.
func (r *Registry) Resolve(req *message.Request) provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.virtualHosting {
		if p, ok := r.hosts[req.HostDomain()]; ok {
			return p
		}
	}
	return r.defaultP
}
