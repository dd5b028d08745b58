package gateway

import (
	"errors"
	"sync"

	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/iec61850"
)

// ErrNotConnected is returned by Handle.Do when the IED has no active
// client. The command router turns it into an immediate refusal.
var ErrNotConnected = errors.New("gateway: IED not connected")

// Handle owns one IED's native client behind the supervisor mutex. The
// native client is not thread-safe: every interaction goes through Do,
// which contends with the owning supervisor's poll and read cycle.
type Handle struct {
	mu     sync.Mutex
	client iec61850.Client
}

// Do runs f with the client under the per-IED mutex. Returns
// ErrNotConnected when no client is attached.
func (h *Handle) Do(f func(c iec61850.Client) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client == nil {
		return ErrNotConnected
	}
	return f(h.client)
}

// attach installs a client under the mutex. Supervisor use only.
func (h *Handle) attach(c iec61850.Client) {
	h.mu.Lock()
	h.client = c
	h.mu.Unlock()
}

// detach closes and removes the client under the mutex. Supervisor use only.
func (h *Handle) detach() {
	h.mu.Lock()
	if h.client != nil {
		h.client.Close()
		h.client = nil
	}
	h.mu.Unlock()
}

// Registry maps IED identities to their client handles. Supervisors
// publish and drop entries as connections cycle; the command router reads
// them. The map guard is separate from the per-IED mutex inside Handle.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Publish makes an IED's handle visible to the command router.
func (r *Registry) Publish(ied string, h *Handle) {
	r.mu.Lock()
	r.handles[ied] = h
	r.mu.Unlock()
}

// Drop removes an IED's handle. Commands for it refuse immediately
// afterwards.
func (r *Registry) Drop(ied string) {
	r.mu.Lock()
	delete(r.handles, ied)
	r.mu.Unlock()
}

// Lookup fetches the active handle for an IED, or nil when offline.
func (r *Registry) Lookup(ied string) *Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handles[ied]
}
