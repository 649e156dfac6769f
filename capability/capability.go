// Package capability records which optional integrations are linked into the
// binary. Integration packages announce themselves from init(), so the set of
// capabilities is fixed once the program starts and never changes afterwards.
package capability

import (
	"sort"
	"sync"
)

// ID identifies a capability.
type ID string

const (
	Logger     ID = "logger-available"
	Console    ID = "console-events-available"
	HTTPKernel ID = "http-kernel-available"
	Security   ID = "security-core-available"
	Messenger  ID = "messenger-available"
)

const builtinPath = "github.com/drblury/sentryflow"

// Registry maintains the capabilities available to the activation policy
// together with the import path of the package that provides each of them.
type Registry struct {
	mu        sync.RWMutex
	providers map[ID]string
}

// DefaultRegistry is the process-wide registry integration packages register with.
// Logging is built in, so Logger is always present.
var DefaultRegistry = NewRegistry(Logger)

// NewRegistry creates a registry that already provides ids.
func NewRegistry(ids ...ID) *Registry {
	r := &Registry{providers: make(map[ID]string, len(ids))}
	for _, id := range ids {
		r.providers[id] = builtinPath
	}
	return r
}

// Provide marks id as available. provider is the import path of the package
// that supplies it and is only used in diagnostics.
func (r *Registry) Provide(id ID, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[id] = provider
}

// Has reports whether id is available.
func (r *Registry) Has(id ID) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[id]
	return ok
}

// Provider returns the package that provides id.
func (r *Registry) Provider(id ID) (string, bool) {
	if r == nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// IDs returns the available capabilities in lexical order.
func (r *Registry) IDs() []ID {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ID, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Provide registers id with the default registry.
func Provide(id ID, provider string) {
	DefaultRegistry.Provide(id, provider)
}

// Has reports whether the default registry provides id.
func Has(id ID) bool {
	return DefaultRegistry.Has(id)
}

// Hint returns the import path an application must link to obtain id.
func Hint(id ID) string {
	switch id {
	case Console:
		return builtinPath + "/integration/console"
	case HTTPKernel:
		return builtinPath + "/integration/httpkernel"
	case Security:
		return builtinPath + "/integration/security"
	case Messenger:
		return builtinPath + "/integration/messenger"
	}
	return ""
}
